package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/handlers"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/config"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/database"
	"github.com/hkcm91/stickernest-access/internal/repositories/postgres"
	"github.com/hkcm91/stickernest-access/internal/services/access"
	"github.com/hkcm91/stickernest-access/internal/services/invitation"
)

// E2ETestServer represents an E2E test server
type E2ETestServer struct {
	Server    *httptest.Server
	Client    *http.Client
	DB        *sql.DB
	JWTSecret string
}

type noopNotifier struct{}

func (noopNotifier) InvitationCreated(ctx context.Context, inv *entities.Invitation) error {
	return nil
}

// SetupE2ETest sets up an E2E test environment: a real database behind
// the full service stack, served over an in-process HTTP server.
// Tests are skipped when no test database is reachable.
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	// Initialize config for test environment
	if err := config.InitConfig("test"); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Skipf("Skipping: test config unavailable: %v", err)
	}

	// Connect to test database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}

	// Run migrations (use absolute path)
	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}
	migrationsPath := projectRoot + "/internal/infrastructure/database/migrations/postgres"
	if err := pg.RunMigrations(migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Clean up existing data
	cleanupDatabase(t, pg.DB)

	// Initialize repositories
	canvasRepo := postgres.NewPostgresCanvasRepository(pg.DB)
	grantRepo := postgres.NewPostgresGrantRepository(pg.DB)
	invRepo := postgres.NewPostgresInvitationRepository(pg.DB)
	logRepo := postgres.NewPostgresPermissionLogRepository(pg.DB)

	// Initialize services
	authorizer := access.NewAuthorizer(canvasRepo, grantRepo)
	store := access.NewStore(canvasRepo, grantRepo, logRepo, authorizer, nil)
	engine := invitation.NewEngine(canvasRepo, invRepo, logRepo, store, authorizer, noopNotifier{}, invitation.Config{
		TokenBytes: cfg.Invitations.TokenBytes,
		DefaultTTL: time.Duration(cfg.Invitations.DefaultTTLHours) * time.Hour,
	})

	// Initialize HTTP handlers and router, metrics disabled
	canvasHandler := handlers.NewCanvasHandler(canvasRepo, authorizer, store, nil)
	invitationHandler := handlers.NewInvitationHandler(engine, nil)
	router := handlers.NewRouter(handlers.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		DB:        pg.DB,
		Canvas:    canvasHandler,
		Invites:   invitationHandler,
	})

	server := httptest.NewServer(router)

	return &E2ETestServer{
		Server:    server,
		Client:    server.Client(),
		DB:        pg.DB,
		JWTSecret: cfg.Auth.JWTSecret,
	}
}

// Teardown cleans up the E2E test environment
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.Server != nil {
		e.Server.Close()
	}
	if e.DB != nil {
		cleanupDatabase(t, e.DB)
		e.DB.Close()
	}
}

// MintToken creates a signed bearer token for the given identity.
func (e *E2ETestServer) MintToken(t *testing.T, userID, email string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(e.JWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// Do issues an authenticated JSON request against the test server and
// returns the status code plus the decoded response body (nil for 204).
func (e *E2ETestServer) Do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp.StatusCode, decoded
}

// cleanupDatabase removes all data from test database
func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Delete in correct order due to foreign key constraints
	tables := []string{"permission_log", "canvas_invitations", "canvas_grants", "canvases"}
	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s", table)
		if _, err := db.ExecContext(ctx, query); err != nil {
			t.Logf("warning: failed to clean up table %s: %v", table, err)
		}
	}
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project root not found")
		}
		dir = parent
	}
}
