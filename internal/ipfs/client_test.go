package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockNode создаёт mock HTTP-сервер узла IPFS.
func setupMockNode(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// TestClient_Add проверяет Add (POST /api/v0/add).
func TestClient_Add(t *testing.T) {
	server := setupMockNode(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/add" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ошибка разбора multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("ошибка чтения поля file: %v", err)
		}
		defer file.Close()

		if header.Filename != "evidence.pdf" {
			t.Errorf("ожидалось имя evidence.pdf, получено %s", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "file content" {
			t.Errorf("содержимое не совпадает: %q", string(body))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(addResponse{
			Name: header.Filename,
			Hash: "bafytestcid",
			Size: "12",
		})
	})

	client := New(server.URL, testLogger())

	cid, size, err := client.Add(context.Background(), "evidence.pdf", strings.NewReader("file content"))
	if err != nil {
		t.Fatalf("Ошибка Add: %v", err)
	}
	if cid != "bafytestcid" {
		t.Errorf("ожидался CID=bafytestcid, получен %s", cid)
	}
	if size != 12 {
		t.Errorf("ожидался size=12, получен %d", size)
	}
}

// TestClient_Add_Error проверяет обработку ошибок Add.
func TestClient_Add_Error(t *testing.T) {
	server := setupMockNode(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("node error"))
	})

	client := New(server.URL, testLogger())

	_, _, err := client.Add(context.Background(), "a.txt", strings.NewReader("x"))
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_Cat проверяет Cat (POST /api/v0/cat).
func TestClient_Cat(t *testing.T) {
	server := setupMockNode(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/cat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("arg"); got != "bafytestcid" {
			t.Errorf("ожидался arg=bafytestcid, получен %s", got)
		}
		w.Write([]byte("file content"))
	})

	client := New(server.URL, testLogger())

	rc, err := client.Cat(context.Background(), "bafytestcid")
	if err != nil {
		t.Fatalf("Ошибка Cat: %v", err)
	}
	defer rc.Close()

	body, _ := io.ReadAll(rc)
	if string(body) != "file content" {
		t.Errorf("содержимое не совпадает: %q", string(body))
	}
}

// TestClient_Cat_NotFound проверяет ошибку Cat для неизвестного CID.
func TestClient_Cat_NotFound(t *testing.T) {
	server := setupMockNode(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"Message":"merkledag: not found"}`))
	})

	client := New(server.URL, testLogger())

	if _, err := client.Cat(context.Background(), "unknown"); err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestClient_Unreachable проверяет обработку недоступного узла.
func TestClient_Unreachable(t *testing.T) {
	client := New("http://localhost:1", testLogger())

	if _, _, err := client.Add(context.Background(), "a", strings.NewReader("x")); err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
}

// TestReadinessChecker проверяет CheckReady.
func TestReadinessChecker(t *testing.T) {
	server := setupMockNode(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v0/version" {
			json.NewEncoder(w).Encode(map[string]string{"Version": "0.29.0"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	checker := NewReadinessChecker(New(server.URL, testLogger()))
	status, _ := checker.CheckReady()
	if status != "ok" {
		t.Errorf("ожидался статус ok, получен %s", status)
	}

	badChecker := NewReadinessChecker(New("http://localhost:1", testLogger()))
	status, _ = badChecker.CheckReady()
	if status != "fail" {
		t.Errorf("ожидался статус fail, получен %s", status)
	}
}
