// Package cloudns はClouDNSのHTTP APIを使用するプロバイダを提供する。
package cloudns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/plexdns-gateway/pkg/httpclient"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// Name はプロバイダの登録名。
const Name = "ClouDNS"

// 設定キー。
const (
	// SettingAuthID はAPIユーザーのID。
	SettingAuthID = "auth_id"
	// SettingSubAuthID はサブユーザーのID。SettingAuthIDより優先しない。
	SettingSubAuthID = "sub_auth_id"
	// SettingAuthPassword はAPIユーザーのパスワード。未設定の場合はapikeyを使用する。
	SettingAuthPassword = "auth_password"
	// SettingEndpoint はAPIのベースURL。
	SettingEndpoint = "endpoint"
	// SettingTimeout はAPI呼び出し1回あたりのタイムアウト（例: "10s"）。
	SettingTimeout = "timeout"
)

// defaultEndpoint はClouDNS APIのベースURL。
const defaultEndpoint = "https://api.cloudns.net"

// allowedTTLs はClouDNSが受け付けるTTL値（昇順）。
var allowedTTLs = []int{60, 300, 900, 1800, 3600, 21600, 43200, 86400, 172800, 259200, 604800, 1209600, 2592000}

// Provider はClouDNS APIクライアント。
type Provider struct {
	client *httpclient.Client
	// auth は全リクエストに付与する認証パラメータ。
	auth url.Values
}

var _ provider.Provider = (*Provider)(nil)

// New は設定値からClouDNSプロバイダを生成する。
func New(settings provider.Settings) (provider.Provider, error) {
	password := settings[SettingAuthPassword]
	if password == "" {
		password = settings[provider.SettingAPIKey]
	}

	auth := url.Values{}
	switch {
	case settings[SettingAuthID] != "":
		auth.Set("auth-id", settings[SettingAuthID])
	case settings[SettingSubAuthID] != "":
		auth.Set("sub-auth-id", settings[SettingSubAuthID])
	default:
		return nil, errors.New("ClouDNS: auth_id or sub_auth_id is required")
	}
	if password == "" {
		return nil, errors.New("ClouDNS: auth_password or apikey is required")
	}
	auth.Set("auth-password", password)

	endpoint := settings[SettingEndpoint]
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	var opts []httpclient.Option
	if v := settings[SettingTimeout]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("ClouDNS: invalid timeout %q", v)
		}
		opts = append(opts, httpclient.WithTimeout(d))
	}

	return &Provider{
		client: httpclient.New(endpoint, opts...),
		auth:   auth,
	}, nil
}

// apiResponse はClouDNS APIの共通レスポンス。
type apiResponse struct {
	Status            string `json:"status"`
	StatusDescription string `json:"statusDescription"`
	Data              struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// CreateZone はマスターゾーンを登録する。
func (p *Provider) CreateZone(ctx context.Context, zone string) error {
	_, err := p.call(ctx, "/dns/register.json", url.Values{
		"domain-name": {zone},
		"zone-type":   {"master"},
	})
	return err
}

// DeleteZone はゾーンを削除する。
func (p *Provider) DeleteZone(ctx context.Context, zone string) error {
	_, err := p.call(ctx, "/dns/delete.json", url.Values{"domain-name": {zone}})
	return err
}

// AppendRecord はレコードを追加し、ClouDNSが採番したIDを設定して返す。
func (p *Provider) AppendRecord(ctx context.Context, zone string, rec provider.Record) (provider.Record, error) {
	params := recordParams(zone, rec)
	params.Set("record-type", strings.ToUpper(rec.Type))

	resp, err := p.call(ctx, "/dns/add-record.json", params)
	if err != nil {
		return provider.Record{}, err
	}
	if resp.Data.ID == "" {
		return provider.Record{}, errors.New("ClouDNS: record id missing in response")
	}
	rec.ID = resp.Data.ID.String()
	return rec, nil
}

// UpdateRecord はレコードIDを指定して内容を置き換える。
func (p *Provider) UpdateRecord(ctx context.Context, zone string, old, rec provider.Record) error {
	params := recordParams(zone, rec)
	params.Set("record-id", old.ID)
	_, err := p.call(ctx, "/dns/mod-record.json", params)
	return err
}

// DeleteRecord はレコードIDを指定して削除する。
func (p *Provider) DeleteRecord(ctx context.Context, zone string, rec provider.Record) error {
	_, err := p.call(ctx, "/dns/delete-record.json", url.Values{
		"domain-name": {zone},
		"record-id":   {rec.ID},
	})
	return err
}

// call は認証パラメータを付与してAPIを呼び出し、status が Success でなければエラーを返す。
func (p *Provider) call(ctx context.Context, path string, params url.Values) (*apiResponse, error) {
	form := url.Values{}
	for k, v := range p.auth {
		form[k] = v
	}
	for k, v := range params {
		form[k] = v
	}

	var resp apiResponse
	if err := p.client.PostForm(ctx, path, form, &resp); err != nil {
		return nil, fmt.Errorf("ClouDNS: %w", err)
	}
	if !strings.EqualFold(resp.Status, "Success") {
		if resp.StatusDescription == "" {
			return nil, fmt.Errorf("ClouDNS: request to %s failed", path)
		}
		return nil, fmt.Errorf("ClouDNS: %s", resp.StatusDescription)
	}
	return &resp, nil
}

// recordParams はレコード追加・更新に共通するパラメータを組み立てる。
// MX と SRV の値は "優先度 値" 形式で受け取り、priority を分離する。
func recordParams(zone string, rec provider.Record) url.Values {
	host := rec.Name
	if host == "@" {
		host = ""
	}

	value := rec.Value
	params := url.Values{
		"domain-name": {zone},
		"host":        {host},
		"ttl":         {strconv.Itoa(normalizeTTL(rec.TTL))},
	}

	switch strings.ToUpper(rec.Type) {
	case "MX", "SRV":
		if prio, rest, ok := strings.Cut(value, " "); ok {
			if _, err := strconv.Atoi(prio); err == nil {
				params.Set("priority", prio)
				value = strings.TrimSpace(rest)
			}
		}
	}
	params.Set("record", value)
	return params
}

// normalizeTTL はTTLをClouDNSが受け付ける値のうち、指定値以上で最小のものに切り上げる。
func normalizeTTL(ttl int) int {
	for _, allowed := range allowedTTLs {
		if ttl <= allowed {
			return allowed
		}
	}
	return allowedTTLs[len(allowedTTLs)-1]
}
