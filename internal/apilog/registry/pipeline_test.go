package registry_test

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/api"
	"github.com/edgecomet/apilog/internal/apilog/events"
	"github.com/edgecomet/apilog/internal/apilog/metrics"
	"github.com/edgecomet/apilog/internal/apilog/registry"
	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/internal/common/httputil"
	"github.com/edgecomet/apilog/internal/common/logger"
	"github.com/edgecomet/apilog/internal/common/requestid"
)

func call(handler fasthttp.RequestHandler, method, uri, id string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if id != "" {
		req.Header.Set(requestid.HeaderName, id)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 40000}, nil)
	handler(ctx)
	return ctx
}

var _ = Describe("API event pipeline", func() {
	var (
		apiObj  *api.API
		reg     *registry.Registry
		m       *metrics.Metrics
		logDir  string
		console *bytes.Buffer
		stream  *events.StreamSink
	)

	BeforeEach(func() {
		logDir = GinkgoT().TempDir()
		console = &bytes.Buffer{}
		apiObj = api.New(zap.NewNop())
		m = metrics.NewMetricsWithRegistry("apilog", prometheus.NewRegistry(), zap.NewNop())
		stream = events.NewStreamSink(16, time.Minute, func(string) { m.RecordStreamDrop() }, zap.NewNop())

		apiObj.SetHandler(api.AddUser, func(ctx *fasthttp.RequestCtx) {
			httputil.JSONSuccess(ctx, "created", fasthttp.StatusCreated)
		})
		apiObj.SetHandler(api.DeleteUser, func(ctx *fasthttp.RequestCtx) {
			httputil.JSONError(ctx, "user not found", fasthttp.StatusNotFound)
		})
	})

	AfterEach(func() {
		if reg != nil {
			Expect(reg.Close()).To(Succeed())
			reg = nil
		}
	})

	Context("with default sinks", func() {
		BeforeEach(func() {
			var err error
			reg, err = registry.New(apiObj, registry.Config{
				Path:          logDir,
				Context:       "users-api",
				ConsoleLogger: logger.NewEventWriterLogger(configtypes.LogFormatJSON, console),
			}, registry.Options{}, m, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("logs a request and its response to console and disc", func() {
			ctx := call(apiObj.Handler(), fasthttp.MethodPost, "/users", "r1")
			Expect(ctx.Response.StatusCode()).To(Equal(fasthttp.StatusCreated))

			Expect(reg.Close()).To(Succeed())
			reg = nil

			lines := strings.Split(strings.TrimSpace(console.String()), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(ContainSubstring(`"msg":"AddUserRequest"`))
			Expect(lines[1]).To(ContainSubstring(`"msg":"AddUserResponse"`))
			Expect(lines[1]).To(ContainSubstring(`"status_code":201`))

			content, err := os.ReadFile(filepath.Join(logDir, "users-api.log"))
			Expect(err).NotTo(HaveOccurred())
			discLines := strings.Split(strings.TrimSpace(string(content)), "\n")
			Expect(discLines).To(HaveLen(2))
			Expect(discLines[0]).To(ContainSubstring("\"AddUserRequest\"\t\"r1\"\t\"POST\"\t\"/users\""))
			Expect(discLines[1]).To(ContainSubstring("\"AddUserResponse\"\t\"r1\""))
			Expect(discLines[1]).To(ContainSubstring("\t201\t"))
		})

		It("does not log routing failures", func() {
			ctx := call(apiObj.Handler(), fasthttp.MethodGet, "/users", "")
			Expect(ctx.Response.StatusCode()).To(Equal(fasthttp.StatusMethodNotAllowed))
			Expect(console.Len()).To(BeZero())
		})

		It("keeps serving after the registry is closed", func() {
			Expect(reg.Close()).To(Succeed())
			reg = nil
			written := console.Len()

			ctx := call(apiObj.Handler(), fasthttp.MethodPost, "/users", "r2")
			Expect(ctx.Response.StatusCode()).To(Equal(fasthttp.StatusCreated))
			Expect(console.Len()).To(Equal(written))
		})
	})

	Context("with stream and error sinks", func() {
		var errorsDir string

		BeforeEach(func() {
			errorsDir = GinkgoT().TempDir()
			errorsSink, err := events.NewFileSink(events.FileSinkConfig{
				Dir:      errorsDir,
				Template: "{event} {response.status_code}",
				Namer:    events.PatternFileNamer("{context}-errors.log"),
			}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			reg, err = registry.New(apiObj, registry.Config{
				Path:          logDir,
				ConsoleLogger: zap.NewNop(),
			}, registry.Options{
				Requests:  registry.SinkSet{Stream: stream},
				Responses: registry.SinkSet{Stream: stream},
				Errors:    registry.SinkSet{Disc: errorsSink},
			}, m, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("streams events matching the subscriber tags", func() {
			sub, err := stream.Subscribe("User", "Response")
			Expect(err).NotTo(HaveOccurred())

			call(apiObj.Handler(), fasthttp.MethodPost, "/users", "r1")

			var frame []byte
			Eventually(sub.Frames()).Should(Receive(&frame))
			Expect(string(frame)).To(ContainSubstring("event: AddUserResponse\n"))

			data := strings.TrimSuffix(strings.SplitN(string(frame), "data: ", 2)[1], "\n\n")
			var event events.Event
			Expect(json.Unmarshal([]byte(data), &event)).To(Succeed())
			Expect(event.RequestID()).To(Equal("r1"))
			Expect(event.Context).To(Equal(registry.DefaultContext))
			Expect(sub.Frames()).To(BeEmpty())
		})

		It("writes failed responses to the errors sink", func() {
			call(apiObj.Handler(), fasthttp.MethodPost, "/users", "ok")
			call(apiObj.Handler(), fasthttp.MethodDelete, "/users", "missing")
			call(apiObj.Handler(), fasthttp.MethodPost, "/organizations", "unimplemented")

			Expect(reg.Close()).To(Succeed())
			reg = nil

			content, err := os.ReadFile(filepath.Join(errorsDir, "default-errors.log"))
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Split(strings.TrimSpace(string(content)), "\n")).To(Equal([]string{
				`"DeleteUserResponse" 404`,
				`"AddOrganizationResponse" 501`,
			}))
		})

		It("counts deliveries per sink", func() {
			call(apiObj.Handler(), fasthttp.MethodPost, "/users", "r1")

			Expect(m.DeliveryCount("AddUserRequest", registry.SinkStream)).To(Equal(float64(1)))
			Expect(m.DeliveryCount("AddUserResponse", registry.SinkStream)).To(Equal(float64(1)))
			Expect(m.DeliveryCount("AddUserResponse", "errors-disc")).To(BeZero())
		})
	})
})
