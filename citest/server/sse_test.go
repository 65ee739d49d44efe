package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/walletperm/citest/testutil"
	"github.com/opencode-ai/walletperm/internal/event"
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/pkg/types"
)

const eventTimeout = 5 * time.Second

var _ = Describe("SSE Event Streaming", func() {
	var (
		sse        *testutil.SSEClient
		sseCtx     context.Context
		sseCancel  context.CancelFunc
		originator string
	)

	BeforeEach(func() {
		originator = testutil.UniqueOriginator()
		sseCtx, sseCancel = context.WithCancel(ctx)
		sse = testServer.SSEClient()
		Expect(sse.Connect(sseCtx, "/event")).To(Succeed())
		_, err := sse.WaitForEvent(string(event.ServerConnected), eventTimeout)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sse.Close()
		sseCancel()
	})

	Describe("GET /event", func() {
		It("should return SSE headers", func() {
			req, err := http.NewRequest(http.MethodGet, testServer.BaseURL+"/event", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Accept", "text/event-stream")

			reqCtx, cancel := context.WithTimeout(ctx, eventTimeout)
			defer cancel()
			resp, err := http.DefaultClient.Do(req.WithContext(reqCtx))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(resp.Header.Get("Connection")).To(Equal("keep-alive"))
		})

		It("should announce each new request once", func() {
			args := testutil.ProtocolArgs(originator, 1, "notes")
			requestID := testutil.ProtocolRequestID(originator, 1, "notes")

			first := client.EnsureAsync(ctx, "protocol", args)
			second := client.EnsureAsync(ctx, "protocol", args)

			evt, err := sse.WaitForEvent(string(event.PermissionRequested), eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			data, err := evt.ParseRequested()
			Expect(err).NotTo(HaveOccurred())
			Expect(data.RequestID).To(Equal(requestID))
			Expect(data.Kind).To(Equal(string(permission.OnProtocolPermissionRequested)))
			Expect(data.Request.Originator).To(Equal(originator))

			_, err = client.WaitPending(ctx, requestID, 2, eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			Expect(sse.CountEventType(string(event.PermissionRequested))).To(Equal(1))

			_, err = client.Deny(ctx, requestID)
			Expect(err).NotTo(HaveOccurred())
			_, err = sse.WaitForEvent(string(event.PermissionDenied), eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			Eventually(first, eventTimeout).Should(Receive())
			Eventually(second, eventTimeout).Should(Receive())
		})

		It("should announce grouped requests and their grant", func() {
			done := client.EnsureAsync(ctx, "grouped", types.GroupedPermissionRequest{
				Originator: originator,
				Permissions: types.GroupedPermissions{
					BasketAccess: []types.GroupedBasketAccess{{Basket: "photos", Description: "gallery"}},
				},
			})

			evt, err := sse.WaitForEvent(string(event.GroupedPermissionRequested), eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			data, err := evt.ParseGroupedRequested()
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Request.Originator).To(Equal(originator))

			resp, err := client.Post(ctx, "/grouped/grant", server.GroupedGrantRequest{
				RequestID: data.RequestID,
				Granted:   data.Request.Permissions,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue(), resp.String())

			granted, err := sse.WaitForEvent(string(event.PermissionGranted), eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			var body struct {
				Data event.PermissionGrantedData `json:"data"`
			}
			Expect(json.Unmarshal(granted.Data, &body)).To(Succeed())
			Expect(body.Data.RequestID).To(Equal(data.RequestID))
			Eventually(done, eventTimeout).Should(Receive())
		})

		It("should announce revoked tokens", func() {
			args := permission.BasketArgs{Originator: originator, Basket: "notes"}
			requestID := "basket:" + originator + ":notes"

			done := client.EnsureAsync(ctx, "basket", args)
			_, err := client.WaitPending(ctx, requestID, 1, eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Grant(ctx, requestID, permission.GrantOptions{})
			Expect(err).NotTo(HaveOccurred())
			Eventually(done, eventTimeout).Should(Receive())

			tokens, err := client.Tokens(ctx, types.PermissionBasket, originator)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(HaveLen(1))

			_, err = client.Post(ctx, "/tokens/revoke", server.RevokeRequest{Type: types.PermissionBasket, Outpoint: tokens[0].Outpoint()})
			Expect(err).NotTo(HaveOccurred())

			evt, err := sse.WaitForEvent(string(event.TokenRevoked), eventTimeout)
			Expect(err).NotTo(HaveOccurred())
			revoked, err := evt.ParseRevoked()
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked.Type).To(Equal(types.PermissionBasket))
			Expect(revoked.Outpoint).To(Equal(tokens[0].Outpoint()))
		})
	})
})
