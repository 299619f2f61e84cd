package acceptance_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/edgecomet/apilog/tests/testhelpers"
)

var _ = Describe("API log gateway", Ordered, func() {
	Context("when an operation is called", func() {
		var response *testhelpers.TestResponse

		BeforeAll(func() {
			response = testEnv.Call(http.MethodPost, "/users", "acc-add-user-1")
		})

		It("answers with the operation response and echoes the request ID", func() {
			testhelpers.ExpectStatus(response, http.StatusNotImplemented)
			Expect(response.Headers.Get("X-Request-ID")).To(Equal("acc-add-user-1"))

			body := testhelpers.DecodeAPIBody(response)
			Expect(body.Success).To(BeFalse())
			Expect(body.RequestID).To(Equal("acc-add-user-1"))
		})

		It("writes request and response events to the disc log", func() {
			Eventually(func() []string {
				return testhelpers.LinesContaining(testEnv.EventLog(), "acc-add-user-1")
			}, 5*time.Second, 100*time.Millisecond).Should(HaveLen(2))

			lines := testhelpers.LinesContaining(testEnv.EventLog(), "acc-add-user-1")
			Expect(lines[0]).To(ContainSubstring("AddUserRequest"))
			Expect(lines[1]).To(ContainSubstring("AddUserResponse"))
			Expect(lines[1]).To(ContainSubstring("\t501\t"))
		})

		It("writes only the failed response to the error log", func() {
			Eventually(func() []string {
				return testhelpers.LinesContaining(testEnv.ErrorLog(), "acc-add-user-1")
			}, 5*time.Second, 100*time.Millisecond).Should(HaveLen(1))

			lines := testhelpers.LinesContaining(testEnv.ErrorLog(), "acc-add-user-1")
			Expect(lines[0]).To(ContainSubstring("AddUserResponse"))
		})

		It("publishes both events to the Redis stream", func() {
			Eventually(func() []string {
				var names []string
				for _, entry := range testEnv.StreamEntries() {
					if entry.Values["request_id"] == "acc-add-user-1" {
						names = append(names, entry.Values["event"].(string))
					}
				}
				return names
			}, 5*time.Second, 100*time.Millisecond).Should(Equal([]string{"AddUserRequest", "AddUserResponse"}))
		})

		It("counts the events in the metrics", func() {
			Eventually(testEnv.Metrics, 5*time.Second, 100*time.Millisecond).Should(And(
				ContainSubstring("apilog_events_raised_total"),
				ContainSubstring(`event="AddUserResponse"`),
				ContainSubstring("apilog_api_responses_total"),
			))
		})
	})

	Context("when a request does not match an operation", func() {
		It("answers 404 without logging", func() {
			response := testEnv.Call(http.MethodGet, "/unknown", "acc-unrouted-1")
			testhelpers.ExpectStatus(response, http.StatusNotFound)

			Consistently(func() []string {
				return testhelpers.LinesContaining(testEnv.EventLog(), "acc-unrouted-1")
			}, 500*time.Millisecond, 100*time.Millisecond).Should(BeEmpty())
		})

		It("answers 405 for a known path with another method", func() {
			response := testEnv.Call(http.MethodGet, "/organizations", "acc-method-1")
			testhelpers.ExpectStatus(response, http.StatusMethodNotAllowed)
		})
	})

	Context("when a client follows the event stream", func() {
		It("receives only events carrying the requested tags", func() {
			stream, err := testEnv.OpenStream("Organization")
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()
			Expect(stream.Subscribed()).To(BeTrue())

			testhelpers.ExpectStatus(testEnv.Call(http.MethodPost, "/users/password", "acc-skip-1"), http.StatusNotImplemented)
			testhelpers.ExpectStatus(testEnv.Call(http.MethodPost, "/organizations", "acc-org-1"), http.StatusNotImplemented)

			Expect(stream.NextEvent()).To(Equal("AddOrganizationRequest"))
			Expect(stream.NextEvent()).To(Equal("AddOrganizationResponse"))
		})
	})

	Context("when the server is controlled through the API", func() {
		It("restarts the HTTP listener and keeps logging", func() {
			response := testEnv.Call(http.MethodPost, "/api/restart", "acc-restart-1")
			testhelpers.ExpectStatus(response, http.StatusAccepted)

			Eventually(func() int {
				return testEnv.Call(http.MethodDelete, "/users", "acc-after-restart").StatusCode
			}, 10*time.Second, 200*time.Millisecond).Should(Equal(http.StatusNotImplemented))

			Eventually(func() []string {
				return testhelpers.LinesContaining(testEnv.EventLog(), "RestartHTTPServerResponse")
			}, 5*time.Second, 100*time.Millisecond).ShouldNot(BeEmpty())
		})

		It("stops the gateway", func() {
			response := testEnv.Call(http.MethodPost, "/api/stop", "acc-stop-1")
			testhelpers.ExpectStatus(response, http.StatusAccepted)

			Eventually(testEnv.GatewayExited, 30*time.Second, 200*time.Millisecond).Should(BeTrue())
		})
	})
})
