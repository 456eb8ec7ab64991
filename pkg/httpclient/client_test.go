package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// testPayload はテスト用のレスポンスペイロード。
type testPayload struct {
	// Status はテスト用のステータスフィールド。
	Status string `json:"status"`
	// ID はテスト用の識別子フィールド。
	ID int `json:"id"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("末尾のスラッシュが取り除かれること", func(t *testing.T) {
		t.Parallel()

		client := New("https://api.example.com/")
		if client.baseURL != "https://api.example.com" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "https://api.example.com")
		}
	})

	t.Run("タイムアウトのデフォルトが30秒であること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("オプションでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(5*time.Second))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestPostForm はPostForm関数を検証する。
func TestPostForm(t *testing.T) {
	t.Parallel()

	t.Run("フォームを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath, gotContentType, gotName, gotUA string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			gotUA = r.Header.Get("User-Agent")
			if err := r.ParseForm(); err != nil {
				t.Errorf("フォームのパースに失敗: %v", err)
			}
			gotName = r.PostForm.Get("domain-name")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"Success","id":12}`)
		}))
		t.Cleanup(ts.Close)

		client := New(ts.URL)
		var result testPayload
		err := client.PostForm(context.Background(), "/dns/register.json", url.Values{"domain-name": {"example.com"}}, &result)
		if err != nil {
			t.Fatalf("PostForm()でエラーが発生: %v", err)
		}

		if gotMethod != http.MethodPost {
			t.Errorf("Method = %q, want %q", gotMethod, http.MethodPost)
		}
		if gotPath != "/dns/register.json" {
			t.Errorf("Path = %q, want %q", gotPath, "/dns/register.json")
		}
		if gotContentType != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", gotContentType)
		}
		if gotName != "example.com" {
			t.Errorf("domain-name = %q, want %q", gotName, "example.com")
		}
		if gotUA != "plexdns-gateway" {
			t.Errorf("User-Agent = %q, want %q", gotUA, "plexdns-gateway")
		}
		if result.Status != "Success" || result.ID != 12 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("2xx以外のステータスでStatusErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream down")
		}))
		t.Cleanup(ts.Close)

		err := New(ts.URL).PostForm(context.Background(), "/", url.Values{}, nil)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("StatusErrorが返されなかった: %v", err)
		}
		if statusErr.StatusCode != http.StatusBadGateway {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusBadGateway)
		}
		if statusErr.Body != "upstream down" {
			t.Errorf("Body = %q", statusErr.Body)
		}
	})

	t.Run("resultがnilの場合でもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `not json`)
		}))
		t.Cleanup(ts.Close)

		if err := New(ts.URL).PostForm(context.Background(), "/", nil, nil); err != nil {
			t.Errorf("PostForm()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{broken`)
		}))
		t.Cleanup(ts.Close)

		var result testPayload
		if err := New(ts.URL).PostForm(context.Background(), "/", nil, &result); err == nil {
			t.Error("エラーが返されなかった")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		t.Cleanup(ts.Close)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := New(ts.URL).PostForm(ctx, "/", nil, nil); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}
