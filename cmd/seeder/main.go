// Seeder drives the service log API over HTTP to fill a fresh installation
// with realistic sample data: it logs in, composes drafts field by field the
// way the form does, and commits them.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

var providers = []string{"PROV-001", "PROV-002", "PROV-003", "AUTOFIX-EU", "RAPID-SERVICE"}

var cars = []string{"CAR-1001", "CAR-1002", "CAR-1003", "CAR-1004", "CAR-1005", "CAR-1006"}

var descriptions = []string{
	"Oil and filter change",
	"Brake pad replacement, front axle",
	"Tire rotation and balancing",
	"Battery replacement",
	"Annual inspection",
	"Coolant flush",
}

var serviceTypes = []string{"planned", "unplanned", "emergency"}

var authToken string

func authorizedRequest(method, url string, body []byte) (*http.Response, error) {
	var reader *bytes.Buffer
	if body != nil {
		reader = bytes.NewBuffer(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func login(apiURL, username, password string) error {
	data, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/auth/login", data)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	token, ok := result["token"].(string)
	if !ok || token == "" {
		return fmt.Errorf("no token in login response")
	}
	authToken = token
	return nil
}

func createDraft(apiURL string) (string, error) {
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/drafts", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("draft creation failed with status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode draft response: %w", err)
	}
	id, ok := result["id"].(string)
	if !ok {
		return "", fmt.Errorf("invalid draft id in response")
	}
	return id, nil
}

func setField(apiURL, draftID, field string, value interface{}) error {
	data, err := json.Marshal(map[string]interface{}{"field": field, "value": value})
	if err != nil {
		return err
	}
	resp, err := authorizedRequest(http.MethodPatch, apiURL+"/drafts/"+draftID, data)
	if err != nil {
		return fmt.Errorf("failed to set field %s: %w", field, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("setting field %s failed with status: %d", field, resp.StatusCode)
	}
	return nil
}

func commitDraft(apiURL, draftID string) error {
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/drafts/"+draftID+"/commit", nil)
	if err != nil {
		return fmt.Errorf("failed to commit draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("commit failed with status: %d", resp.StatusCode)
	}
	return nil
}

func seedOne(apiURL string, n int) error {
	draftID, err := createDraft(apiURL)
	if err != nil {
		return err
	}

	startDate := time.Now().AddDate(0, 0, -rand.Intn(90)).Format("2006-01-02")
	fields := []struct {
		name  string
		value interface{}
	}{
		{"providerId", providers[rand.Intn(len(providers))]},
		{"serviceOrder", fmt.Sprintf("SO-%05d", 10000+n)},
		{"carId", cars[rand.Intn(len(cars))]},
		{"odometer", float64(20000 + rand.Intn(180000))},
		{"engineHours", float64(500 + rand.Intn(9500))},
		{"startDate", startDate},
		{"type", serviceTypes[rand.Intn(len(serviceTypes))]},
		{"serviceDescription", descriptions[rand.Intn(len(descriptions))]},
	}
	for _, f := range fields {
		if err := setField(apiURL, draftID, f.name, f.value); err != nil {
			return err
		}
	}

	if err := commitDraft(apiURL, draftID); err != nil {
		return err
	}

	log.WithFields(log.Fields{"draft_id": draftID, "n": n}).Info("Seeded service log")
	return nil
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	count := 10
	if val := os.Getenv("SEED_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			count = n
		}
	}

	username := os.Getenv("SEED_OPERATOR_USERNAME")
	if username == "" {
		username = "operator"
	}
	password := os.Getenv("SEED_OPERATOR_PASSWORD")
	if password == "" {
		password = "fleet-operator"
	}

	if err := login(apiURL, username, password); err != nil {
		log.WithError(err).Fatal("Login failed. Ensure the API is reachable and credentials are valid.")
	}

	log.WithFields(log.Fields{"api_url": apiURL, "count": count}).Info("Starting seed run")

	seeded := 0
	for i := 0; i < count; i++ {
		if err := seedOne(apiURL, i+1); err != nil {
			log.WithError(err).Error("Failed to seed service log")
			continue
		}
		seeded++
	}

	log.WithField("seeded", seeded).Info("Seed run completed")
}
