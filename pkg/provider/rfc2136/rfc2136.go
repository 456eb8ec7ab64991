// Package rfc2136 はRFC 2136の動的更新でDNSサーバーにレコードを反映するプロバイダを提供する。
//
// ゾーン自体の作成と削除は権威サーバー側で管理する前提のため、CreateZoneは
// ゾーンのSOAが応答されることの確認のみを行い、DeleteZoneは何もしない。
package rfc2136

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// Name はプロバイダの登録名。
const Name = "RFC2136"

// 設定キー。
const (
	SettingNameserver    = "nameserver"
	SettingTSIGKey       = "tsig_key"
	SettingTSIGSecret    = "tsig_secret"
	SettingTSIGAlgorithm = "tsig_algorithm"
	SettingNet           = "net"
	SettingTimeout       = "timeout"
)

const (
	// clockSkew はTSIG署名で許容する時刻のずれ（秒）。
	clockSkew = 300
	// udpMaxMsgSize はUDPで送信できるDNSメッセージの最大サイズ。
	udpMaxMsgSize = 512
	// defaultTimeout は問い合わせ1回あたりのタイムアウト。
	defaultTimeout = 10 * time.Second
)

// Provider はRFC 2136の動的更新クライアント。
type Provider struct {
	nameserver string
	net        string
	timeout    time.Duration
	tsigKey    string
	tsigSecret string
	tsigAlg    string
}

var _ provider.Provider = (*Provider)(nil)

// New は設定値からRFC 2136プロバイダを生成する。
// tsig_secret が未設定でapikeyがある場合はapikeyをTSIGシークレットとして使用する。
func New(settings provider.Settings) (provider.Provider, error) {
	ns := settings[SettingNameserver]
	if ns == "" {
		return nil, errors.New("RFC2136: nameserver is required")
	}
	if _, _, err := net.SplitHostPort(ns); err != nil {
		ns = net.JoinHostPort(ns, "53")
	}

	p := &Provider{
		nameserver: ns,
		net:        settings[SettingNet],
		timeout:    defaultTimeout,
		tsigSecret: settings[SettingTSIGSecret],
		tsigAlg:    settings[SettingTSIGAlgorithm],
	}
	if p.net != "" && p.net != "udp" && p.net != "tcp" {
		return nil, fmt.Errorf("RFC2136: unsupported net %q", p.net)
	}
	if v := settings[SettingTimeout]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("RFC2136: invalid timeout %q: %w", v, err)
		}
		p.timeout = d
	}

	if key := settings[SettingTSIGKey]; key != "" {
		p.tsigKey = dns.Fqdn(key)
		if p.tsigSecret == "" {
			p.tsigSecret = settings[provider.SettingAPIKey]
		}
		if p.tsigSecret == "" {
			return nil, errors.New("RFC2136: tsig_secret is required when tsig_key is set")
		}
		if p.tsigAlg == "" {
			p.tsigAlg = dns.HmacSHA256
		}
		p.tsigAlg = dns.Fqdn(strings.ToLower(p.tsigAlg))
	}
	return p, nil
}

// CreateZone はゾーンのSOAが権威サーバーから応答されることを確認する。
func (p *Provider) CreateZone(ctx context.Context, zone string) error {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(zone), dns.TypeSOA)

	resp, err := p.exchange(ctx, m)
	if err != nil {
		return err
	}
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.SOA); ok {
			return nil
		}
	}
	return fmt.Errorf("RFC2136: zone %s is not served by %s", zone, p.nameserver)
}

// DeleteZone は何もしない。ゾーンの削除は権威サーバー側で行う。
func (p *Provider) DeleteZone(context.Context, string) error { return nil }

// AppendRecord はレコードを追加する。プロバイダ側IDとしてUUIDを割り当てる。
func (p *Provider) AppendRecord(ctx context.Context, zone string, rec provider.Record) (provider.Record, error) {
	rr, err := toRR(zone, rec)
	if err != nil {
		return provider.Record{}, err
	}

	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(zone))
	m.Insert([]dns.RR{rr})
	if err := p.update(ctx, m); err != nil {
		return provider.Record{}, err
	}

	rec.ID = uuid.New().String()
	return rec, nil
}

// UpdateRecord は古いレコードの削除と新しいレコードの追加を1つの更新メッセージで行う。
func (p *Provider) UpdateRecord(ctx context.Context, zone string, old, rec provider.Record) error {
	oldRR, err := toRR(zone, old)
	if err != nil {
		return err
	}
	newRR, err := toRR(zone, rec)
	if err != nil {
		return err
	}

	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(zone))
	m.Remove([]dns.RR{oldRR})
	m.Insert([]dns.RR{newRR})
	return p.update(ctx, m)
}

// DeleteRecord はレコードを削除する。
func (p *Provider) DeleteRecord(ctx context.Context, zone string, rec provider.Record) error {
	rr, err := toRR(zone, rec)
	if err != nil {
		return err
	}

	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(zone))
	m.Remove([]dns.RR{rr})
	return p.update(ctx, m)
}

// update は更新メッセージを送信し、応答コードを検査する。
func (p *Provider) update(ctx context.Context, m *dns.Msg) error {
	resp, err := p.exchange(ctx, m)
	if err != nil {
		return err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("RFC2136: update rejected: %s", dns.RcodeToString[resp.Rcode])
	}
	return nil
}

// exchange はTSIG署名とトランスポートの選択を行ってメッセージを送信する。
func (p *Provider) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	c := &dns.Client{Net: p.net, Timeout: p.timeout}
	if p.tsigKey != "" {
		c.TsigSecret = map[string]string{p.tsigKey: p.tsigSecret}
		m.SetTsig(p.tsigKey, p.tsigAlg, clockSkew, time.Now().Unix())
	}
	if m.Len() > udpMaxMsgSize {
		c.Net = "tcp"
	}

	resp, _, err := c.ExchangeContext(ctx, m, p.nameserver)
	if err != nil {
		return nil, fmt.Errorf("RFC2136: exchange with %s failed: %w", p.nameserver, err)
	}
	if resp == nil {
		return nil, errors.New("RFC2136: no response received")
	}
	return resp, nil
}

// toRR はゾーン相対のレコードをリソースレコードに変換する。
func toRR(zone string, rec provider.Record) (dns.RR, error) {
	rrType := strings.ToUpper(rec.Type)
	value := rec.Value
	if rrType == "TXT" && !strings.HasPrefix(value, `"`) {
		value = strconv.Quote(value)
	}

	text := fmt.Sprintf("%s %d IN %s %s", provider.FQDN(rec.Name, zone), rec.TTL, rrType, value)
	rr, err := dns.NewRR(text)
	if err != nil {
		return nil, fmt.Errorf("RFC2136: invalid record %q: %w", text, err)
	}
	if rr == nil {
		return nil, fmt.Errorf("RFC2136: empty record %q", text)
	}
	return rr, nil
}
