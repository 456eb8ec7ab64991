package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// Operation はゲートウェイが公開する操作の種類。
type Operation int

const (
	// OpInstall はデータベースのスキーマを構築する。
	OpInstall Operation = iota + 1
	// OpUninstall はデータベースのスキーマを撤去する。
	OpUninstall
	// OpCreateDomain はドメインを作成する。
	OpCreateDomain
	// OpDeleteDomain はドメインを削除する。
	OpDeleteDomain
	// OpAddRecord はDNSレコードを追加する。
	OpAddRecord
	// OpUpdateRecord はDNSレコードを更新する。
	OpUpdateRecord
	// OpDeleteRecord はDNSレコードを削除する。
	OpDeleteRecord
)

// Operations はルーティングテーブルを構成するすべての操作。
var Operations = []Operation{
	OpInstall,
	OpUninstall,
	OpCreateDomain,
	OpDeleteDomain,
	OpAddRecord,
	OpUpdateRecord,
	OpDeleteRecord,
}

// Route は操作に対応するHTTPメソッドとパスを返す。
func (o Operation) Route() (method, path string) {
	switch o {
	case OpInstall:
		return http.MethodPost, "/install"
	case OpUninstall:
		return http.MethodPost, "/uninstall"
	case OpCreateDomain:
		return http.MethodPost, "/domain"
	case OpDeleteDomain:
		return http.MethodDelete, "/domain"
	case OpAddRecord:
		return http.MethodPost, "/record"
	case OpUpdateRecord:
		return http.MethodPut, "/record"
	case OpDeleteRecord:
		return http.MethodDelete, "/record"
	}
	panic(fmt.Sprintf("gateway: unknown operation %d", int(o)))
}

// String は操作名を返す。ログとメトリクスのラベルに使用する。
func (o Operation) String() string {
	switch o {
	case OpInstall:
		return "install"
	case OpUninstall:
		return "uninstall"
	case OpCreateDomain:
		return "create_domain"
	case OpDeleteDomain:
		return "delete_domain"
	case OpAddRecord:
		return "add_record"
	case OpUpdateRecord:
		return "update_record"
	case OpDeleteRecord:
		return "delete_record"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// dispatch は検証済みのペイロードでサービスファサードを呼び出し、成功時のレスポンスを返す。
func (s *Server) dispatch(ctx context.Context, op Operation, p Payload) (any, error) {
	switch op {
	case OpInstall:
		if err := s.service.Install(ctx); err != nil {
			return nil, err
		}
		return success("Database structure installed"), nil
	case OpUninstall:
		if err := s.service.Uninstall(ctx); err != nil {
			return nil, err
		}
		return success("Database structure uninstalled"), nil
	case OpCreateDomain:
		id, err := s.service.CreateDomain(ctx, p)
		if err != nil {
			return nil, err
		}
		return domainResponse{Status: statusSuccess, Domain: id}, nil
	case OpDeleteDomain:
		if err := s.service.DeleteDomain(ctx, p); err != nil {
			return nil, err
		}
		return success("Domain deleted"), nil
	case OpAddRecord:
		id, err := s.service.AddRecord(ctx, p)
		if err != nil {
			return nil, err
		}
		return recordResponse{Status: statusSuccess, RecordID: id}, nil
	case OpUpdateRecord:
		if err := s.service.UpdateRecord(ctx, p); err != nil {
			return nil, err
		}
		return success("DNS record updated"), nil
	case OpDeleteRecord:
		if err := s.service.DelRecord(ctx, p); err != nil {
			return nil, err
		}
		return success("DNS record deleted"), nil
	}
	return nil, fmt.Errorf("unknown operation: %s", op)
}
