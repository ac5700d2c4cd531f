//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These tests drive a running demo stack from the outside. Start both
// processes first:
//
//	rhai3 serve &
//	go run ./test/model-dummy &
//
// SERVER_URL and MODEL_URL override the default local addresses.
var _ = Describe("Demo Stack Integration Tests", func() {
	var (
		serverURL  string
		modelURL   string
		httpClient *http.Client
	)

	BeforeEach(func() {
		serverURL = envOrDefault("SERVER_URL", "http://localhost:8080")
		modelURL = envOrDefault("MODEL_URL", "http://localhost:8000")

		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}

		// Wait for the demo server to answer
		Eventually(func() error {
			resp, err := httpClient.Get(serverURL + "/healthz")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status: %d", resp.StatusCode)
			}
			return nil
		}, 30*time.Second, 2*time.Second).Should(Succeed())

		GinkgoWriter.Printf("Demo server responding at %s\n", serverURL)
	})

	Describe("Health and Metrics", func() {
		It("should report healthy", func() {
			resp, err := httpClient.Get(serverURL + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should expose Prometheus metrics", func() {
			resp, err := httpClient.Get(serverURL + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(body)).To(ContainSubstring("# HELP"))
			Expect(string(body)).To(ContainSubstring("rhai3_demo_"))
		})
	})

	Describe("Cluster API", func() {
		It("should list GPU pods", func() {
			resp, err := httpClient.Get(serverURL + "/api/v1/gpu-pods")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var inventory map[string]interface{}
			err = json.Unmarshal(body, &inventory)
			Expect(err).NotTo(HaveOccurred())

			Expect(inventory).To(HaveKey("total_gpus"))

			GinkgoWriter.Printf("GPU inventory: %+v\n", inventory)
		})

		It("should report namespace status", func() {
			resp, err := httpClient.Get(serverURL + "/api/v1/namespaces/default")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var status map[string]interface{}
			err = json.Unmarshal(body, &status)
			Expect(err).NotTo(HaveOccurred())

			Expect(status["exists"]).To(Equal(true))
		})

		It("should report nothing to delete for an absent namespace", func() {
			// A namespace that never existed makes teardown a no-op, so
			// this stays safe to run against any cluster.
			resp, err := httpClient.Post(
				serverURL+"/api/v1/namespaces/rhai3-integration-absent/teardown",
				"application/json",
				bytes.NewBufferString(`{"max_wait_seconds": 5, "poll_interval_seconds": 1}`),
			)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			err = json.Unmarshal(body, &result)
			Expect(err).NotTo(HaveOccurred())

			Expect(result["outcome"]).To(Equal("nothing_to_delete"))
		})
	})

	Describe("Model API", func() {
		It("should answer the health probe", func() {
			resp, err := httpClient.Get(modelURL + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should list the served model", func() {
			resp, err := httpClient.Get(modelURL + "/v1/models")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var modelsResp map[string]interface{}
			err = json.Unmarshal(body, &modelsResp)
			Expect(err).NotTo(HaveOccurred())

			Expect(modelsResp["object"]).To(Equal("list"))
			Expect(modelsResp["data"]).NotTo(BeNil())
		})

		It("should answer a chat completion", func() {
			requestBody := map[string]interface{}{
				"model": "granite-3-1-8b-instruct",
				"messages": []map[string]string{
					{"role": "user", "content": "Which model are you?"},
				},
			}

			bodyBytes, err := json.Marshal(requestBody)
			Expect(err).NotTo(HaveOccurred())

			resp, err := httpClient.Post(
				modelURL+"/v1/chat/completions",
				"application/json",
				bytes.NewBuffer(bodyBytes),
			)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var completionResp map[string]interface{}
			err = json.Unmarshal(body, &completionResp)
			Expect(err).NotTo(HaveOccurred())

			Expect(completionResp["object"]).To(Equal("chat.completion"))
			Expect(completionResp["choices"]).NotTo(BeNil())

			GinkgoWriter.Printf("Chat completion response: %+v\n", completionResp)
		})
	})

	Describe("Concurrent Requests", func() {
		It("should handle multiple concurrent inventory requests", func() {
			const concurrency = 10
			results := make(chan error, concurrency)

			for i := 0; i < concurrency; i++ {
				go func(id int) {
					resp, err := httpClient.Get(serverURL + "/api/v1/gpu-pods")
					if err != nil {
						results <- err
						return
					}
					defer resp.Body.Close()

					if resp.StatusCode != http.StatusOK {
						results <- fmt.Errorf("request %d failed with status %d", id, resp.StatusCode)
						return
					}

					results <- nil
				}(i)
			}

			for i := 0; i < concurrency; i++ {
				err := <-results
				Expect(err).NotTo(HaveOccurred())
			}

			GinkgoWriter.Printf("Successfully handled %d concurrent requests\n", concurrency)
		})
	})
})

// Helper to check if env var is set
func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
