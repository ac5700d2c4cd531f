// Command model-dummy is a mock OpenAI-compatible model server for testing
// the smoke-check flow without a GPU cluster. It answers /health, /v1/models
// and /v1/chat/completions the way a KServe vLLM runtime does, including the
// 503-while-loading window.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// ModelsResponse represents the /v1/models API response
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model represents a single model in the API
type Model struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	OwnedBy string      `json:"owned_by"`
	Root    string      `json:"root"`
	Parent  interface{} `json:"parent"`
}

var (
	// isReady tracks if the server has finished "loading"
	isReady atomic.Bool
	// omitUsage drops the usage block from chat responses so clients have
	// to estimate token counts locally
	omitUsage bool
)

func main() {
	modelName := os.Getenv("MODEL_NAME")
	if modelName == "" {
		modelName = "granite-3-1-8b-instruct"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	omitUsage = os.Getenv("OMIT_USAGE") != ""

	// STARTUP_DELAY simulates model loading time (in seconds)
	startupDelay := 0
	if delayStr := os.Getenv("STARTUP_DELAY"); delayStr != "" {
		if delay, err := strconv.Atoi(delayStr); err == nil && delay > 0 {
			startupDelay = delay
		}
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting dummy model server on %s", addr)
	log.Printf("Model: %s (usage reporting: %v)", modelName, !omitUsage)

	if startupDelay > 0 {
		log.Printf("Simulating model loading with %d second startup delay", startupDelay)
		isReady.Store(false)

		go func() {
			time.Sleep(time.Duration(startupDelay) * time.Second)
			isReady.Store(true)
			log.Printf("Model loaded, server is now ready to accept requests")
		}()
	} else {
		isReady.Store(true)
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/v1/models", modelsHandler(modelName))
	http.HandleFunc("/v1/chat/completions", chatCompletionsHandler(modelName))

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	if !isReady.Load() {
		// Server is still loading, return 503 Service Unavailable
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := fmt.Fprintln(w, "Loading"); err != nil {
			log.Printf("Failed to write response: %v", err)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintln(w, "OK"); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func modelsHandler(modelName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := ModelsResponse{
			Object: "list",
			Data: []Model{
				{
					ID:      modelName,
					Object:  "model",
					Created: 1700000000,
					OwnedBy: "vllm",
					Root:    modelName,
					Parent:  nil,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Failed to encode models response: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}

func chatCompletionsHandler(modelName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if !isReady.Load() {
			http.Error(w, "Model is still loading", http.StatusServiceUnavailable)
			return
		}

		response := map[string]interface{}{
			"id":      "chatcmpl-123",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   modelName,
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": fmt.Sprintf("I am %s, a mock model answering from the dummy server.", modelName),
					},
					"finish_reason": "stop",
				},
			},
		}
		if !omitUsage {
			response["usage"] = map[string]int{
				"prompt_tokens":     10,
				"completion_tokens": 15,
				"total_tokens":      25,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Failed to encode chat completions response: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
