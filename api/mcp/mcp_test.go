package mcp_test

import (
	"context"
	"encoding/json"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/api/mcp"
	"github.com/nrashid7/infobase/pkg/knowledge"
	infologger "github.com/nrashid7/infobase/pkg/logger"
)

// connect wires an in-process client session to server.
func connect(ctx context.Context, server *mcp.Server) *sdk.ClientSession {
	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	serverSession, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(serverSession.Close)

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(session.Close)
	return session
}

func callText(ctx context.Context, session *sdk.ClientSession, name string, args map[string]any) (*sdk.CallToolResult, string) {
	result, err := session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Content).NotTo(BeEmpty())
	text, ok := result.Content[0].(*sdk.TextContent)
	Expect(ok).To(BeTrue())
	return result, text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *mcp.Server
		repo   *knowledge.Repository
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		repo, err = knowledge.NewBundledRepository()
		Expect(err).NotTo(HaveOccurred())

		server, err = mcp.NewServer(mcp.Config{
			Knowledge: repo,
			Logger:    infologger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the knowledge repository is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: infologger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("knowledge repository is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Knowledge: repo})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("allows a noop server without dependencies", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		var session *sdk.ClientSession

		BeforeEach(func() {
			session = connect(ctx, server)
		})

		It("lists the knowledge tools", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("search_guides", "get_guide", "list_portals"))
		})

		It("searches guides", func() {
			result, text := callText(ctx, session, "search_guides", map[string]any{"query": "passport fee", "limit": 2})
			Expect(result.IsError).To(BeFalse())

			var out mcp.SearchGuidesOutput
			Expect(json.Unmarshal([]byte(text), &out)).To(Succeed())
			Expect(out.Count).To(BeNumerically(">", 0))
			Expect(out.Count).To(BeNumerically("<=", 2))
			Expect(out.Results[0].Guide.ID).To(Equal("e-passport"))
		})

		It("gets a guide with its claims", func() {
			result, text := callText(ctx, session, "get_guide", map[string]any{"id": "e-passport"})
			Expect(result.IsError).To(BeFalse())

			var out mcp.GetGuideOutput
			Expect(json.Unmarshal([]byte(text), &out)).To(Succeed())
			Expect(out.Guide).NotTo(BeNil())
			Expect(out.Guide.Claims).To(HaveLen(13))
		})

		It("reports an unknown guide as a tool error", func() {
			result, text := callText(ctx, session, "get_guide", map[string]any{"id": "nope"})
			Expect(result.IsError).To(BeTrue())
			Expect(text).To(ContainSubstring("not found"))
		})

		It("lists portals by category", func() {
			_, text := callText(ctx, session, "list_portals", map[string]any{"category": "health"})

			var out mcp.ListPortalsOutput
			Expect(json.Unmarshal([]byte(text), &out)).To(Succeed())
			Expect(out.Count).To(Equal(2))
			for _, p := range out.Portals {
				Expect(p.CategoryID).To(Equal("health"))
			}
		})
	})
})
