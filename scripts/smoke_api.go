package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:5000"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func main() {
	color.Cyan("🚀 Starting CodeCollab API Smoke Test\n")

	// 1. Health check
	color.Yellow("\n1. Health Check")
	resp, body, err := sendRequest("GET", "/", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var healthResp map[string]interface{}
	json.Unmarshal(body, &healthResp)
	prettyPrint(healthResp)

	// 2. AI completion (debug mode)
	color.Yellow("\n2. AI Completion: Debug Mode")
	debugReq := map[string]interface{}{
		"prompt": "int main(){ return oops; }",
		"type":   "debug",
	}
	resp, body, err = sendRequest("POST", "/api/ai/complete", debugReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var debugResp map[string]interface{}
	json.Unmarshal(body, &debugResp)
	if data, ok := debugResp["data"].(map[string]interface{}); ok {
		fmt.Printf("Result: %s\n", data["result"])
	} else {
		prettyPrint(debugResp)
	}

	// 3. AI completion with an empty prompt must be rejected
	color.Yellow("\n3. AI Completion: Empty Prompt (expect 400)")
	resp, body, err = sendRequest("POST", "/api/ai/complete", map[string]interface{}{"prompt": ""})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	if resp.StatusCode == http.StatusBadRequest {
		color.Green("Status: %s (rejected as expected)", resp.Status)
	} else {
		color.Red("Unexpected status: %s", resp.Status)
	}
	var badResp map[string]interface{}
	json.Unmarshal(body, &badResp)
	prettyPrint(badResp)

	color.Cyan("\n✅ Smoke Test Complete")
}
