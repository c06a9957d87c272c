package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
)

const sampleProfile = `{
  "goal_type": "Extra Income",
  "time_commitment": "5-10 hrs/week",
  "budget_range": "Under $1,000",
  "interest_area": "AI / Automation",
  "sub_interest_area": "Customer support",
  "work_style": "Solo",
  "skill_strength": "Technical / Engineering",
  "experience_summary": "Backend engineer with six years in fintech, built internal support tooling.",
  "founder_psychology": {"risk_tolerance": "medium", "motivation": "independence"}
}`

type TestClient struct {
	baseURL string
	userID  string
	profile []byte
	client  *http.Client
}

func NewTestClient(baseURL, userID string, profile []byte) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		userID:  userID,
		profile: profile,
		client: &http.Client{
			// Discovery runs two LLM stages plus tool calls.
			Timeout: 4 * time.Minute,
		},
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the agent")
	testType := flag.String("test", "all", "Test type: all, health, agent-card, discovery, stream, a2a")
	profilePath := flag.String("profile", "", "Path to a profile JSON file (defaults to a built-in sample)")
	userID := flag.String("user", "smoke-test", "Value sent in X-User-ID")
	flag.Parse()

	profile := []byte(sampleProfile)
	if *profilePath != "" {
		data, err := os.ReadFile(*profilePath)
		if err != nil {
			printError(fmt.Sprintf("Cannot read profile: %v", err))
			os.Exit(1)
		}
		profile = data
	}
	if !json.Valid(profile) {
		printError("Profile is not valid JSON")
		os.Exit(1)
	}

	client := NewTestClient(*baseURL, *userID, profile)

	printHeader("Startup Discovery Agent - Test Suite")
	fmt.Printf("%sBase URL: %s%s\n\n", colorCyan, *baseURL, colorReset)

	tests := map[string]func() bool{
		"health":     client.testHealthCheck,
		"agent-card": client.testAgentCard,
		"discovery":  client.testDiscovery,
		"stream":     client.testStream,
		"a2a":        client.testA2A,
	}

	if *testType == "all" {
		client.runAllTests()
		return
	}
	fn, ok := tests[*testType]
	if !ok {
		printError(fmt.Sprintf("Unknown test type: %s", *testType))
		fmt.Println("\nAvailable tests: all, health, agent-card, discovery, stream, a2a")
		os.Exit(1)
	}
	if !fn() {
		os.Exit(1)
	}
}

func (tc *TestClient) runAllTests() {
	tests := []struct {
		name string
		fn   func() bool
	}{
		{"Health Check", tc.testHealthCheck},
		{"Agent Card", tc.testAgentCard},
		{"Discovery", tc.testDiscovery},
		{"Discovery Stream", tc.testStream},
		{"A2A Task", tc.testA2A},
	}

	passed := 0
	failed := 0

	for _, test := range tests {
		if test.fn() {
			passed++
		} else {
			failed++
		}
		fmt.Println()
	}

	printHeader("Test Summary")
	fmt.Printf("%sPassed: %d%s\n", colorGreen, passed, colorReset)
	fmt.Printf("%sFailed: %d%s\n", colorRed, failed, colorReset)
	fmt.Printf("Total: %d\n", passed+failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func (tc *TestClient) testHealthCheck() bool {
	printTestHeader("Testing Health Check Endpoint")

	url := fmt.Sprintf("%s/health", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		printError(fmt.Sprintf("Expected 200 OK, got %d %q", resp.StatusCode, string(body)))
		return false
	}

	printSuccess("Health check passed")
	return true
}

func (tc *TestClient) testAgentCard() bool {
	printTestHeader("Testing Agent Card Endpoint")

	url := fmt.Sprintf("%s/.well-known/agent.json", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var agentCard map[string]any
	if err := json.Unmarshal(body, &agentCard); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	for _, field := range []string{"name", "description", "version", "capabilities", "skills"} {
		if _, ok := agentCard[field]; !ok {
			printError(fmt.Sprintf("Missing required field: %s", field))
			return false
		}
	}

	printSuccess("Agent card is valid")
	printJSON(body)
	return true
}

func (tc *TestClient) post(url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", tc.userID)
	return tc.client.Do(req)
}

func (tc *TestClient) testDiscovery() bool {
	printTestHeader("Testing Unary Discovery")

	url := fmt.Sprintf("%s/api/discovery", tc.baseURL)
	fmt.Printf("POST %s\n", url)

	resp, err := tc.post(url, tc.profile)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result struct {
		Success bool              `json:"success"`
		RunID   string            `json:"run_id"`
		Error   string            `json:"error"`
		Outputs map[string]string `json:"outputs"`
		Metrics map[string]any    `json:"performance_metrics"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		printError(fmt.Sprintf("Discovery failed with %d: %s", resp.StatusCode, result.Error))
		return false
	}

	printSuccess(fmt.Sprintf("Discovery completed (run %s)", result.RunID))
	for _, section := range []string{"profile_analysis", "startup_ideas_research", "personalized_recommendations"} {
		fmt.Printf("\n%s%s:%s\n", colorGreen, section, colorReset)
		fmt.Println(strings.Repeat("=", 80))
		fmt.Println(result.Outputs[section])
	}
	metrics, _ := json.MarshalIndent(result.Metrics, "", "  ")
	fmt.Printf("\n%sMetrics:%s\n%s\n", colorPurple, colorReset, metrics)
	return true
}

func (tc *TestClient) testStream() bool {
	printTestHeader("Testing Streaming Discovery")

	url := fmt.Sprintf("%s/api/discovery?stream=true&cache_bypass=true", tc.baseURL)
	fmt.Printf("POST %s\n", url)

	resp, err := tc.post(url, tc.profile)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		body, _ := io.ReadAll(resp.Body)
		printError(fmt.Sprintf("Expected an event stream, got %d %s: %s", resp.StatusCode, ct, string(body)))
		return false
	}

	counts := map[string]int{}
	var last map[string]any
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			printError(fmt.Sprintf("Bad event frame: %v", err))
			return false
		}
		kind, _ := ev["type"].(string)
		counts[kind]++
		if kind == "delta" {
			text, _ := ev["text"].(string)
			fmt.Print(text)
		}
		last = ev
	}
	fmt.Println()
	if err := sc.Err(); err != nil {
		printError(fmt.Sprintf("Stream read failed: %v", err))
		return false
	}

	fmt.Printf("%sEvents:%s %v\n", colorYellow, colorReset, counts)
	if counts["start"] != 1 || counts["done"]+counts["error"] != 1 {
		printError("Stream must have exactly one start and one terminal event")
		return false
	}
	if last["type"] == "error" {
		printError(fmt.Sprintf("Stream ended with error: %v", last["error"]))
		return false
	}

	printSuccess("Stream completed")
	return true
}

func (tc *TestClient) testA2A() bool {
	printTestHeader("Testing A2A Task")

	url := fmt.Sprintf("%s/a2a/discovery", tc.baseURL)
	fmt.Printf("POST %s\n", url)

	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      fmt.Sprintf("test-%d", time.Now().Unix()),
		"method":  "message/send",
		"params": map[string]any{
			"message": map[string]any{
				"kind": "message",
				"role": "user",
				"parts": []map[string]any{
					{"kind": "data", "data": json.RawMessage(tc.profile)},
				},
			},
			"configuration": map[string]any{
				"blocking":            true,
				"acceptedOutputModes": []string{"text"},
			},
		},
	}

	jsonData, _ := json.MarshalIndent(request, "", "  ")
	fmt.Printf("%sRequest:%s\n%s\n\n", colorYellow, colorReset, jsonData)

	resp, err := tc.post(url, jsonData)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var response struct {
		Error  map[string]any `json:"error"`
		Result struct {
			Status struct {
				State   string `json:"state"`
				Message struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"message"`
			} `json:"status"`
			Artifacts []struct {
				Name string `json:"name"`
			} `json:"artifacts"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	if response.Error != nil {
		printError(fmt.Sprintf("Request returned an error: %v", response.Error))
		return false
	}
	if response.Result.Status.State != "completed" {
		printError(fmt.Sprintf("Expected state 'completed', got '%s'", response.Result.Status.State))
		for _, p := range response.Result.Status.Message.Parts {
			fmt.Println(p.Text)
		}
		return false
	}

	printSuccess("A2A task completed")
	for _, a := range response.Result.Artifacts {
		fmt.Printf("%s- %s%s\n", colorPurple, a.Name, colorReset)
	}
	return true
}

func printHeader(text string) {
	fmt.Printf("\n%s%s%s\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
	fmt.Printf("%s= %s =%s\n", colorBlue, text, colorReset)
	fmt.Printf("%s%s%s\n\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
}

func printTestHeader(text string) {
	fmt.Printf("%s[TEST] %s%s\n", colorCyan, text, colorReset)
	fmt.Println(strings.Repeat("-", 80))
}

func printSuccess(text string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, text, colorReset)
}

func printError(text string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, text, colorReset)
}

func printJSON(data []byte) {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, data, "", "  "); err == nil {
		fmt.Printf("\n%sResponse:%s\n%s\n", colorYellow, colorReset, prettyJSON.String())
	}
}
