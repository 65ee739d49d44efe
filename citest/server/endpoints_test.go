package server_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/walletperm/citest/testutil"
	"github.com/opencode-ai/walletperm/internal/permission"
	"github.com/opencode-ai/walletperm/internal/server"
	"github.com/opencode-ai/walletperm/pkg/types"
)

const answerTimeout = 5 * time.Second

// expectAllowed waits for an ensure call and checks it was allowed.
func expectAllowed(ch <-chan testutil.EnsureResult) {
	GinkgoHelper()
	var res testutil.EnsureResult
	Eventually(ch, answerTimeout).Should(Receive(&res))
	Expect(res.Err).NotTo(HaveOccurred())
	Expect(res.Response.StatusCode).To(Equal(http.StatusOK), res.Response.String())

	var body server.EnsureResponse
	Expect(res.Response.JSON(&body)).To(Succeed())
	Expect(body.Allowed).To(BeTrue())
}

// expectRefused waits for an ensure call and checks its error code.
func expectRefused(ch <-chan testutil.EnsureResult, status int, code string) {
	GinkgoHelper()
	var res testutil.EnsureResult
	Eventually(ch, answerTimeout).Should(Receive(&res))
	Expect(res.Err).NotTo(HaveOccurred())
	Expect(res.Response.StatusCode).To(Equal(status), res.Response.String())
	Expect(res.Response.ErrorCode()).To(Equal(code))
}

var _ = Describe("Server Endpoints Integration Tests", func() {
	var originator string

	BeforeEach(func() {
		originator = testutil.UniqueOriginator()
	})

	Describe("GET /health", func() {
		It("should report ok", func() {
			resp, err := client.Get(ctx, "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.String()).To(ContainSubstring(`"ok"`))
		})
	})

	Describe("GET /config", func() {
		It("should expose the admin originator and restrictive defaults", func() {
			resp, err := client.Get(ctx, "/config")
			Expect(err).NotTo(HaveOccurred())

			var cfg server.ConfigResponse
			Expect(resp.JSON(&cfg)).To(Succeed())
			Expect(cfg.AdminOriginator).To(Equal(testutil.AdminOriginator))
			Expect(cfg.Permissions).To(Equal(permission.DefaultConfig()))
		})
	})

	Describe("protocol permissions", func() {
		It("should grant, persist and then answer from the token", func() {
			args := testutil.ProtocolArgs(originator, 2, "invoices")
			requestID := testutil.ProtocolRequestID(originator, 2, "invoices")

			done := client.EnsureAsync(ctx, "protocol", args)
			pending, err := client.WaitPending(ctx, requestID, 1, answerTimeout)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.Kind).To(Equal(permission.OnProtocolPermissionRequested))
			Expect(pending.Request.Protocol.Counterparty).To(Equal("self"))

			resp, err := client.Grant(ctx, requestID, permission.GrantOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			expectAllowed(done)

			tokens, err := client.Tokens(ctx, types.PermissionProtocol, originator)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(HaveLen(1))
			Expect(tokens[0].Protocol).To(Equal("invoices"))
			Expect(tokens[0].Expiry).To(BeNumerically(">", time.Now().Unix()))

			args.NoPrompt = true
			expectAllowed(client.EnsureAsync(ctx, "protocol", args))
		})

		It("should release every waiter with the same denial", func() {
			args := testutil.ProtocolArgs(originator, 2, "invoices")
			requestID := testutil.ProtocolRequestID(originator, 2, "invoices")

			first := client.EnsureAsync(ctx, "protocol", args)
			second := client.EnsureAsync(ctx, "protocol", args)
			third := client.EnsureAsync(ctx, "protocol", args)
			_, err := client.WaitPending(ctx, requestID, 3, answerTimeout)
			Expect(err).NotTo(HaveOccurred())

			resp, err := client.Deny(ctx, requestID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			for _, ch := range []<-chan testutil.EnsureResult{first, second, third} {
				expectRefused(ch, http.StatusForbidden, server.ErrCodePermissionDenied)
			}

			pending, err := client.Pending(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, p := range pending {
				Expect(p.RequestID).NotTo(Equal(requestID))
			}
		})

		It("should let security level 0 through without asking", func() {
			expectAllowed(client.EnsureAsync(ctx, "protocol", testutil.ProtocolArgs(originator, 0, "public stuff")))
		})

		It("should refuse admin-reserved protocols", func() {
			expectRefused(client.EnsureAsync(ctx, "protocol", testutil.ProtocolArgs(originator, 2, "admin keys")),
				http.StatusForbidden, server.ErrCodeInvalidOperation)
		})

		It("should let the admin originator through", func() {
			expectAllowed(client.EnsureAsync(ctx, "protocol", testutil.ProtocolArgs(testutil.AdminOriginator, 2, "admin keys")))
		})

		It("should not issue a token for an ephemeral grant", func() {
			args := testutil.ProtocolArgs(originator, 2, "once")
			requestID := testutil.ProtocolRequestID(originator, 2, "once")

			done := client.EnsureAsync(ctx, "protocol", args)
			_, err := client.WaitPending(ctx, requestID, 1, answerTimeout)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Grant(ctx, requestID, permission.GrantOptions{Ephemeral: true})
			Expect(err).NotTo(HaveOccurred())
			expectAllowed(done)

			tokens, err := client.Tokens(ctx, types.PermissionProtocol, originator)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(BeEmpty())
		})
	})

	Describe("certificate access", func() {
		It("should cover any subset of the granted fields", func() {
			args := permission.CertificateArgs{
				Originator: originator,
				Verifier:   "02abcdef",
				CertType:   "identity",
				Fields:     []string{"name", "email"},
			}
			requestID := "certificate:" + originator + ":false:02abcdef:identity"

			done := client.EnsureAsync(ctx, "certificate", args)
			_, err := client.WaitPending(ctx, requestID, 1, answerTimeout)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Grant(ctx, requestID, permission.GrantOptions{})
			Expect(err).NotTo(HaveOccurred())
			expectAllowed(done)

			subset := args
			subset.Fields = []string{"email"}
			subset.NoPrompt = true
			expectAllowed(client.EnsureAsync(ctx, "certificate", subset))

			other := args
			other.Fields = []string{"phone"}
			other.NoPrompt = true
			expectRefused(client.EnsureAsync(ctx, "certificate", other), http.StatusForbidden, server.ErrCodeInvalidOperation)
		})
	})

	Describe("spending authorization", func() {
		It("should authorize up to the granted monthly amount", func() {
			done := client.EnsureAsync(ctx, "spending", permission.SpendingArgs{Originator: originator, Satoshis: 100})
			_, err := client.WaitPending(ctx, "spending:"+originator, 1, answerTimeout)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Grant(ctx, "spending:"+originator, permission.GrantOptions{Amount: 5000})
			Expect(err).NotTo(HaveOccurred())
			expectAllowed(done)

			tokens, err := client.Tokens(ctx, types.PermissionSpending, originator)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(HaveLen(1))
			Expect(tokens[0].AuthorizedAmount).To(Equal(uint64(5000)))

			expectAllowed(client.EnsureAsync(ctx, "spending", permission.SpendingArgs{Originator: originator, Satoshis: 4000, NoPrompt: true}))

			resp, err := client.Get(ctx, "/spending", testutil.WithQuery(map[string]string{"originator": originator}))
			Expect(err).NotTo(HaveOccurred())
			var spent server.SpendingResponse
			Expect(resp.JSON(&spent)).To(Succeed())
			Expect(spent.Spent).To(BeZero())
		})
	})

	Describe("grouped permissions", func() {
		It("should issue only the granted subset", func() {
			perms := types.GroupedPermissions{
				Description: "onboarding",
				ProtocolPermissions: []types.GroupedProtocolPermission{{
					ProtocolID:  types.ProtocolID{SecurityLevel: 2, Protocol: "chat"},
					Description: "messages",
				}},
				BasketAccess: []types.GroupedBasketAccess{{Basket: "photos", Description: "gallery"}},
			}
			done := client.EnsureAsync(ctx, "grouped", types.GroupedPermissionRequest{Originator: originator, Permissions: perms})

			var requestID string
			Eventually(func() bool {
				pending, err := client.Pending(ctx)
				if err != nil {
					return false
				}
				for _, p := range pending {
					if p.Grouped != nil && p.Grouped.Originator == originator {
						requestID = p.RequestID
						return true
					}
				}
				return false
			}, answerTimeout).Should(BeTrue())
			Expect(requestID).To(HavePrefix("grouped:" + originator + ":"))

			granted := perms
			granted.BasketAccess = nil
			resp, err := client.Post(ctx, "/grouped/grant", server.GroupedGrantRequest{RequestID: requestID, Granted: granted})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK), resp.String())
			expectAllowed(done)

			chat := testutil.ProtocolArgs(originator, 2, "chat")
			chat.NoPrompt = true
			expectAllowed(client.EnsureAsync(ctx, "protocol", chat))

			expectRefused(client.EnsureAsync(ctx, "basket", permission.BasketArgs{Originator: originator, Basket: "photos", NoPrompt: true}),
				http.StatusForbidden, server.ErrCodeInvalidOperation)
		})

		It("should reject a grant that exceeds the request", func() {
			perms := types.GroupedPermissions{
				BasketAccess: []types.GroupedBasketAccess{{Basket: "photos", Description: "gallery"}},
			}
			done := client.EnsureAsync(ctx, "grouped", types.GroupedPermissionRequest{Originator: originator, Permissions: perms})

			var requestID string
			Eventually(func() string {
				pending, _ := client.Pending(ctx)
				for _, p := range pending {
					if p.Grouped != nil && p.Grouped.Originator == originator {
						requestID = p.RequestID
					}
				}
				return requestID
			}, answerTimeout).ShouldNot(BeEmpty())

			extra := perms
			extra.BasketAccess = append(extra.BasketAccess, types.GroupedBasketAccess{Basket: "contacts"})
			resp, err := client.Post(ctx, "/grouped/grant", server.GroupedGrantRequest{RequestID: requestID, Granted: extra})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), resp.String())

			resp, err = client.Post(ctx, "/grouped/deny", server.DenyRequest{RequestID: requestID})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())
			expectRefused(done, http.StatusForbidden, server.ErrCodePermissionDenied)
		})
	})

	Describe("token revocation", func() {
		It("should stop confirming a revoked basket", func() {
			args := permission.BasketArgs{Originator: originator, Basket: "notes"}
			requestID := "basket:" + originator + ":notes"

			done := client.EnsureAsync(ctx, "basket", args)
			_, err := client.WaitPending(ctx, requestID, 1, answerTimeout)
			Expect(err).NotTo(HaveOccurred())
			_, err = client.Grant(ctx, requestID, permission.GrantOptions{})
			Expect(err).NotTo(HaveOccurred())
			expectAllowed(done)

			tokens, err := client.Tokens(ctx, types.PermissionBasket, originator)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(HaveLen(1))

			resp, err := client.Post(ctx, "/tokens/revoke", server.RevokeRequest{Type: types.PermissionBasket, Outpoint: tokens[0].Outpoint()})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsSuccess()).To(BeTrue())

			args.NoPrompt = true
			expectRefused(client.EnsureAsync(ctx, "basket", args), http.StatusForbidden, server.ErrCodeInvalidOperation)
		})
	})

	Describe("request validation", func() {
		It("should reject unknown request IDs", func() {
			resp, err := client.Grant(ctx, "basket:"+originator+":nothing", permission.GrantOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(resp.ErrorCode()).To(Equal(server.ErrCodeNotFound))
		})

		It("should reject missing originators", func() {
			expectRefused(client.EnsureAsync(ctx, "basket", permission.BasketArgs{Basket: "notes"}),
				http.StatusBadRequest, server.ErrCodeInvalidRequest)
		})
	})
})
