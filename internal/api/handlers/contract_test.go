package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/polydocs/backend/internal/api/middleware"
	"github.com/polydocs/backend/internal/config"
	"github.com/polydocs/backend/internal/models"
	"github.com/polydocs/backend/internal/services"
	"github.com/polydocs/backend/internal/termsable"
)

type fakeLister struct {
	contracts map[string][]models.Contract
}

func (l *fakeLister) ContractsByOwner(_ context.Context, owner string) ([]models.Contract, error) {
	return l.contracts[owner], nil
}

const (
	testOwner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	otherAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// newContractApp mounts the handler behind a stub auth context for testOwner.
func newContractApp(t *testing.T, lister ContractLister) *fiber.App {
	t.Helper()

	factory, err := termsable.NewFactory("")
	if err != nil {
		t.Fatalf("failed to build factory: %v", err)
	}
	deployer := services.NewDeployer(
		services.NewChainResolver(&config.Config{Chains: map[string]config.ChainConfig{}}),
		factory, nil, nil, 0,
	)
	handler := NewContractHandler(deployer, lister)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetAuthContext(c,
			&models.User{ID: testOwner, Accounts: []string{testOwner}},
			map[string]models.Account{testOwner: {ID: testOwner}},
		)
		return c.Next()
	})
	app.Post("/make-nft-contract", handler.MakeNFTContract)
	app.Get("/contracts", handler.GetContracts)
	return app
}

func TestMakeNFTContractValidation(t *testing.T) {
	app := newContractApp(t, &fakeLister{})

	cases := []struct {
		name string
		req  services.DeployRequest
	}{
		{name: "bad address", req: services.DeployRequest{Address: "nothex", Name: "Terms", Symbol: "TRM", ChainID: "137"}},
		{name: "missing name", req: services.DeployRequest{Address: testOwner, Symbol: "TRM", ChainID: "137"}},
		{name: "missing symbol", req: services.DeployRequest{Address: testOwner, Name: "Terms", ChainID: "137"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, app, "/make-nft-contract", tc.req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestMakeNFTContractRejectsUnheldOwner(t *testing.T) {
	app := newContractApp(t, &fakeLister{})

	resp := postJSON(t, app, "/make-nft-contract", services.DeployRequest{
		Address: otherAddr,
		Name:    "Terms",
		Symbol:  "TRM",
		ChainID: "137",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMakeNFTContractRejectsUnknownChain(t *testing.T) {
	app := newContractApp(t, &fakeLister{})

	resp := postJSON(t, app, "/make-nft-contract", services.DeployRequest{
		Address: testOwner,
		Name:    "Terms",
		Symbol:  "TRM",
		ChainID: "999999",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if out["error"] != "Invalid chainId" {
		t.Fatalf("error = %q, want Invalid chainId", out["error"])
	}
}

func TestGetContractsDefaultsToFirstAccount(t *testing.T) {
	lister := &fakeLister{contracts: map[string][]models.Contract{
		testOwner: {
			{ID: models.ContractID("80001", otherAddr), Name: "Terms A", Owner: testOwner},
			{ID: models.ContractID("137", otherAddr), Name: "Terms B", Owner: testOwner},
		},
	}}
	app := newContractApp(t, lister)

	req := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var out []map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d contracts, want 2", len(out))
	}
	if out[0]["chainId"] != "80001" || out[0]["address"] != otherAddr {
		t.Fatalf("contract id not split into chainId/address: %v", out[0])
	}
}

func TestGetContractsRejectsForeignAccount(t *testing.T) {
	app := newContractApp(t, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/contracts?account="+otherAddr, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if out["error"] != "No account found" {
		t.Fatalf("error = %q, want No account found", out["error"])
	}
}
