package rfc2136

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/miekg/dns"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// fakeServer は受け取ったメッセージを記録するテスト用DNSサーバー。
type fakeServer struct {
	addr  string
	rcode int

	mu   sync.Mutex
	msgs []*dns.Msg
}

// newFakeServer はループバックのUDPでテスト用DNSサーバーを起動する。
// example.com. のSOAに応答し、更新メッセージにはrcodeを返す。
func newFakeServer(t *testing.T, rcode int) *fakeServer {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("UDPリッスンに失敗: %v", err)
	}

	fs := &fakeServer{addr: pc.LocalAddr().String(), rcode: rcode}
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		// 既定の受付関数はUPDATEにNOTIMPを返すため、すべて受け付ける。
		MsgAcceptFunc: func(dns.Header) dns.MsgAcceptAction { return dns.MsgAccept },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			fs.mu.Lock()
			fs.msgs = append(fs.msgs, r.Copy())
			fs.mu.Unlock()

			m := new(dns.Msg)
			m.SetReply(r)
			if r.Opcode == dns.OpcodeUpdate {
				m.Rcode = fs.rcode
			} else if len(r.Question) == 1 && r.Question[0].Qtype == dns.TypeSOA && r.Question[0].Name == "example.com." {
				soa, _ := dns.NewRR("example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600")
				m.Answer = append(m.Answer, soa)
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return fs
}

func (fs *fakeServer) messages() []*dns.Msg {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]*dns.Msg(nil), fs.msgs...)
}

// TestNew は設定値の検証を確認する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nameserverが無い場合エラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(provider.Settings{}); err == nil {
			t.Error("エラーが返されなかった")
		}
	})

	t.Run("ポート省略時に53が補われること", func(t *testing.T) {
		t.Parallel()

		p, err := New(provider.Settings{SettingNameserver: "192.0.2.53"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if got := p.(*Provider).nameserver; got != "192.0.2.53:53" {
			t.Errorf("nameserver = %q", got)
		}
	})

	t.Run("TSIGシークレットにapikeyが使われること", func(t *testing.T) {
		t.Parallel()

		p, err := New(provider.Settings{SettingNameserver: "192.0.2.53:53", SettingTSIGKey: "update-key", provider.SettingAPIKey: "c2VjcmV0"})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		rp := p.(*Provider)
		if rp.tsigKey != "update-key." || rp.tsigSecret != "c2VjcmV0" || rp.tsigAlg != dns.HmacSHA256 {
			t.Errorf("TSIG設定 = %q %q %q", rp.tsigKey, rp.tsigSecret, rp.tsigAlg)
		}
	})

	t.Run("未対応のnetはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(provider.Settings{SettingNameserver: "192.0.2.53", SettingNet: "quic"}); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}

// TestToRR はレコードの変換を検証する。
func TestToRR(t *testing.T) {
	t.Parallel()

	t.Run("ゾーン相対名が完全修飾名になること", func(t *testing.T) {
		t.Parallel()

		rr, err := toRR("example.com", provider.Record{Name: "www", Type: "a", Value: "192.0.2.1", TTL: 300})
		if err != nil {
			t.Fatalf("toRR()でエラーが発生: %v", err)
		}
		a, ok := rr.(*dns.A)
		if !ok {
			t.Fatalf("型 = %T, want *dns.A", rr)
		}
		if a.Hdr.Name != "www.example.com." || a.Hdr.Ttl != 300 || a.A.String() != "192.0.2.1" {
			t.Errorf("rr = %s", a.String())
		}
	})

	t.Run("TXTの値が引用符で囲まれること", func(t *testing.T) {
		t.Parallel()

		rr, err := toRR("example.com", provider.Record{Name: "@", Type: "TXT", Value: "v=spf1 -all", TTL: 60})
		if err != nil {
			t.Fatalf("toRR()でエラーが発生: %v", err)
		}
		txt := rr.(*dns.TXT)
		if len(txt.Txt) != 1 || txt.Txt[0] != "v=spf1 -all" {
			t.Errorf("Txt = %v", txt.Txt)
		}
	})

	t.Run("不正な値はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := toRR("example.com", provider.Record{Name: "www", Type: "A", Value: "not-an-ip", TTL: 60}); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}

// TestDynamicUpdate は動的更新メッセージの送信を検証する。
func TestDynamicUpdate(t *testing.T) {
	t.Parallel()

	t.Run("追加・更新・削除が更新メッセージとして送られること", func(t *testing.T) {
		t.Parallel()

		fs := newFakeServer(t, dns.RcodeSuccess)
		p, err := New(provider.Settings{SettingNameserver: fs.addr})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		ctx := context.Background()

		if err := p.CreateZone(ctx, "example.com"); err != nil {
			t.Fatalf("CreateZone()でエラーが発生: %v", err)
		}
		rec, err := p.AppendRecord(ctx, "example.com", provider.Record{Name: "www", Type: "A", Value: "192.0.2.1", TTL: 300})
		if err != nil {
			t.Fatalf("AppendRecord()でエラーが発生: %v", err)
		}
		if rec.ID == "" {
			t.Error("IDが割り当てられなかった")
		}
		updated := rec
		updated.Value = "192.0.2.2"
		if err := p.UpdateRecord(ctx, "example.com", rec, updated); err != nil {
			t.Fatalf("UpdateRecord()でエラーが発生: %v", err)
		}
		if err := p.DeleteRecord(ctx, "example.com", updated); err != nil {
			t.Fatalf("DeleteRecord()でエラーが発生: %v", err)
		}

		msgs := fs.messages()
		if len(msgs) != 4 {
			t.Fatalf("受信メッセージ数 = %d, want 4", len(msgs))
		}
		insert := msgs[1]
		if insert.Opcode != dns.OpcodeUpdate || insert.Question[0].Name != "example.com." {
			t.Errorf("追加メッセージ = %s", insert.String())
		}
		if len(insert.Ns) != 1 || insert.Ns[0].Header().Class != dns.ClassINET {
			t.Errorf("追加セクション = %v", insert.Ns)
		}
		if len(msgs[2].Ns) != 2 || msgs[2].Ns[0].Header().Class != dns.ClassNONE {
			t.Errorf("更新セクション = %v", msgs[2].Ns)
		}
		if len(msgs[3].Ns) != 1 || msgs[3].Ns[0].Header().Class != dns.ClassNONE {
			t.Errorf("削除セクション = %v", msgs[3].Ns)
		}
	})

	t.Run("拒否された更新はエラーになること", func(t *testing.T) {
		t.Parallel()

		fs := newFakeServer(t, dns.RcodeRefused)
		p, err := New(provider.Settings{SettingNameserver: fs.addr})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		_, err = p.AppendRecord(context.Background(), "example.com", provider.Record{Name: "www", Type: "A", Value: "192.0.2.1", TTL: 300})
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}
		if want := "RFC2136: update rejected: REFUSED"; err.Error() != want {
			t.Errorf("err = %q, want %q", err.Error(), want)
		}
	})

	t.Run("提供されていないゾーンはCreateZoneでエラーになること", func(t *testing.T) {
		t.Parallel()

		fs := newFakeServer(t, dns.RcodeSuccess)
		p, err := New(provider.Settings{SettingNameserver: fs.addr})
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if err := p.CreateZone(context.Background(), "example.org"); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}
