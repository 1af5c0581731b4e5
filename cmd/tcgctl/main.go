// Package main implements the tcgctl CLI for manual operations against the tcgd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the tcgd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tcgctl",
	Short: "CLI for tcgd HTTP server operations",
	Long: `tcgctl is a command-line interface for interacting with the tcgd HTTP server.
It sends prompts to the manager, advances pipeline requests, and inspects request state.`,
	Version: version,
}

var (
	advanceReqID  string
	advanceStage  string
	advanceAction string
	advanceCases  []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "tcgd server URL")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(advanceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)

	advanceCmd.Flags().StringVar(&advanceReqID, "req", "", "request identifier (required)")
	advanceCmd.Flags().StringVar(&advanceStage, "stage", "", "stage the decision applies to (required)")
	advanceCmd.Flags().StringVar(&advanceAction, "action", "continue", "user action: continue or stop")
	advanceCmd.Flags().StringSliceVar(&advanceCases, "test-case-ids", nil, "restrict downstream stages to these test case ids")
	_ = advanceCmd.MarkFlagRequired("req")
	_ = advanceCmd.MarkFlagRequired("stage")
}

// askCmd sends a prompt to the manager endpoint
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a prompt to the manager",
	Long: `Send a free-text prompt to the tcgd manager. Requirement statements open
a pipeline request; anything else gets a direct answer.

Examples:
  # Ask a general question
  tcgctl ask "what does ISO 62304 cover?"

  # Open a pipeline request from a requirement
  tcgctl ask "The pump shall log every insulin delivery with a timestamp."

  # Read the prompt from stdin
  cat requirement.txt | tcgctl ask -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// advanceCmd issues a continue/stop decision for a pipeline stage
var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Continue or stop a pipeline request at a stage",
	Long: `Issue a continue or stop decision for a pipeline request.

Examples:
  # Approve generated test cases and move on
  tcgctl advance --req REQ-1A2B3C4D --stage testcases --action continue

  # Only carry selected cases forward
  tcgctl advance --req REQ-1A2B3C4D --stage testcases --test-case-ids TC-1,TC-3

  # Stop a request
  tcgctl advance --req REQ-1A2B3C4D --stage samples_junit --action stop`,
	RunE: runAdvance,
}

// statusCmd shows the state of a pipeline request
var statusCmd = &cobra.Command{
	Use:   "status <req_id>",
	Short: "Show the state of a pipeline request",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check tcgd server health",
	RunE:  runHealth,
}

// ManagerRequest matches internal/http/types.go ManagerRequest
type ManagerRequest struct {
	Prompt string `json:"prompt"`
}

// ManagerResponse matches internal/http/types.go ManagerResponse
type ManagerResponse struct {
	Mode      string `json:"mode"`
	Answer    string `json:"answer,omitempty"`
	ReqID     string `json:"req_id,omitempty"`
	Status    string `json:"status,omitempty"`
	NextStage string `json:"next_stage,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ContinueRequest matches internal/http/types.go ContinueRequest
type ContinueRequest struct {
	Stage       string   `json:"stage"`
	ReqID       string   `json:"req_id"`
	UserAction  string   `json:"user_action"`
	TestCaseIDs []string `json:"test_case_ids,omitempty"`
}

// TransitionResponse matches internal/http/types.go TransitionResponse
type TransitionResponse struct {
	ReqID     string `json:"req_id"`
	Status    string `json:"status"`
	NextStage string `json:"next_stage,omitempty"`
	Message   string `json:"message"`
}

// HealthResponse matches internal/http/types.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// runAsk handles the ask command
func runAsk(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	if prompt == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		prompt = string(content)
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("no prompt to send")
	}

	var resp ManagerResponse
	if err := postJSON("/manager", ManagerRequest{Prompt: prompt}, &resp); err != nil {
		return err
	}

	if resp.Mode == "general" {
		fmt.Println(resp.Answer)
		return nil
	}

	fmt.Printf("Request:    %s\n", resp.ReqID)
	fmt.Printf("Status:     %s\n", resp.Status)
	fmt.Printf("Next stage: %s\n", resp.NextStage)
	if resp.Message != "" {
		fmt.Printf("Message:    %s\n", resp.Message)
	}
	return nil
}

// runAdvance handles the advance command
func runAdvance(cmd *cobra.Command, args []string) error {
	if advanceAction != "continue" && advanceAction != "stop" {
		return fmt.Errorf("invalid action %q (must be continue or stop)", advanceAction)
	}

	req := ContinueRequest{
		Stage:       advanceStage,
		ReqID:       advanceReqID,
		UserAction:  advanceAction,
		TestCaseIDs: advanceCases,
	}

	var resp TransitionResponse
	if err := postJSON("/pipeline/continue", req, &resp); err != nil {
		return err
	}

	fmt.Printf("Request:    %s\n", resp.ReqID)
	fmt.Printf("Status:     %s\n", resp.Status)
	if resp.NextStage != "" {
		fmt.Printf("Next stage: %s\n", resp.NextStage)
	}
	fmt.Printf("Message:    %s\n", resp.Message)
	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/requests/%s", serverURL, args[0])

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	// Pretty-print the view as-is so new fields show up without a
	// tcgctl release.
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Println(pretty.String())
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/healthz", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	return nil
}

// postJSON posts body to path and decodes the JSON response into out.
func postJSON(path string, body, out any) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
