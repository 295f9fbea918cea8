package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/clicktrail/internal/config"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
	"github.com/sakif/clicktrail/internal/repository/memory"
	"github.com/sakif/clicktrail/internal/service"
	"github.com/sakif/clicktrail/internal/telegram"
)

// testEnv serves cfg and a seeded in-memory store to every command.
func testEnv(t *testing.T, cfg *config.Config) (*env, *memory.Store) {
	t.Helper()
	store := memory.New()
	if cfg == nil {
		cfg = &config.Config{LogFormat: "text"}
	}
	return &env{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
		openStore:  func(string) (repository.ClickRepository, error) { return store, nil },
	}, store
}

// run executes trackctl with args and returns stdout.
func run(t *testing.T, e *env, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand(e)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	_, err := store.CreatePending(ctx, "oldPending", model.SourceMetadata{}, old)
	require.NoError(t, err)
	_, err = store.CreatePending(ctx, "oldClaimed", model.SourceMetadata{}, old.Add(time.Minute))
	require.NoError(t, err)
	_, err = store.Claim(ctx, "oldClaimed", model.Identity{UserID: 7, Username: "carol"}, old.Add(time.Hour))
	require.NoError(t, err)
	_, err = store.CreatePending(ctx, "freshPending", model.SourceMetadata{}, time.Now())
	require.NoError(t, err)
}

func TestExportCommand(t *testing.T) {
	e, store := testEnv(t, nil)
	seed(t, store)

	t.Run("stdout", func(t *testing.T) {
		out, err := run(t, e, "", "export")
		require.NoError(t, err)

		records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, service.Columns, records[0])
		assert.Equal(t, "claimed", records[2][1])
	})

	t.Run("file with source and limit", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clicks.csv")
		out, err := run(t, e, "", "export", "--source", "--limit", "1", "--out", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Len(t, records[0], len(service.Columns)+len(service.SourceColumns))
		assert.Equal(t, "freshPending", records[1][0])
	})
}

func TestPurgeCommand(t *testing.T) {
	e, store := testEnv(t, nil)
	seed(t, store)

	out, err := run(t, e, "", "purge", "--older-than", "24h", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would delete 1 pending clicks")

	clicks, err := store.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, clicks, 3, "dry run deletes nothing")

	out, err = run(t, e, "", "purge", "--older-than", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 pending clicks")

	clicks, err = store.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "oldClaimed", clicks[0].Token)
	assert.Equal(t, "freshPending", clicks[1].Token)
}

func TestPurgeCommand_RequiresDuration(t *testing.T) {
	e, _ := testEnv(t, nil)

	_, err := run(t, e, "", "purge")
	assert.Error(t, err)

	_, err = run(t, e, "", "purge", "--older-than=-1h")
	assert.Error(t, err)
}

func TestStartsCommand(t *testing.T) {
	e, store := testEnv(t, nil)
	_, err := store.RecordBotStart(context.Background(), &model.BotStart{
		UpdateID: 7,
		Payload:  "forged",
		Identity: model.Identity{UserID: 99, Username: "mallory", FirstName: "Mal", LastName: "Lory"},
	})
	require.NoError(t, err)

	out, err := run(t, e, "", "starts")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[0], "UPDATE_ID")
	assert.Contains(t, strings.Fields(lines[1]), "7")
	assert.Contains(t, lines[1], "forged")
	assert.Contains(t, lines[1], "mallory")
	assert.Contains(t, lines[1], "Mal Lory")
}

func TestHashTokenCommand(t *testing.T) {
	e, _ := testEnv(t, nil)

	for name, tc := range map[string]struct {
		stdin string
		args  []string
	}{
		"argument": {"", []string{"hash-token", "--cost", "4", "admin-secret"}},
		"stdin":    {"admin-secret\n", []string{"hash-token", "--cost", "4"}},
	} {
		t.Run(name, func(t *testing.T) {
			out, err := run(t, e, tc.stdin, tc.args...)
			require.NoError(t, err)

			hashed := strings.TrimSpace(out)
			assert.True(t, strings.HasPrefix(hashed, "$2"))
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("admin-secret")))
		})
	}

	_, err := run(t, e, "", "hash-token", "--cost", "4")
	assert.Error(t, err, "empty stdin")
}

func TestSetWebhookCommand(t *testing.T) {
	var (
		mu  sync.Mutex
		got telegram.SetWebhookParams
		ok  atomic.Bool
	)
	ok.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		if ok.Load() {
			_, _ = w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: bad webhook"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		BotToken:       "123:ABC",
		BaseURL:        "https://track.example.com",
		WebhookSecret:  "wh_secret",
		TelegramAPIURL: srv.URL,
	}
	e, _ := testEnv(t, cfg)

	out, err := run(t, e, "", "set-webhook")
	require.NoError(t, err)
	assert.Contains(t, out, "https://track.example.com/tg/webhook")
	mu.Lock()
	assert.Equal(t, "https://track.example.com/tg/webhook", got.URL)
	assert.Equal(t, "wh_secret", got.SecretToken)
	mu.Unlock()

	ok.Store(false)
	_, err = run(t, e, "", "set-webhook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad webhook")
}

func TestSetWebhookCommand_MissingConfig(t *testing.T) {
	e, _ := testEnv(t, &config.Config{})

	_, err := run(t, e, "", "set-webhook")
	require.Error(t, err)
	for _, name := range []string{"BOT_TOKEN", "BASE_URL", "WEBHOOK_SECRET"} {
		assert.Contains(t, err.Error(), name)
	}
}
