package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/hitoshi/riflelog/internal/model"
)

const (
	defaultSBHSAuthURL     = "https://auth.sbhs.net.au/authorize"
	defaultSBHSTokenURL    = "https://auth.sbhs.net.au/token"
	defaultSBHSUserInfoURL = "https://student.sbhs.net.au/api/details/userinfo.json"
	defaultSBHSScopes      = "openid profile all-ro"
)

// SBHSOAuthConfig は学校IdP（SBHS）の設定。
// パブリッククライアントのためクライアントシークレットは持たない。
type SBHSOAuthConfig struct {
	ClientID    string
	RedirectURL string // IdPに登録したものと完全一致する必要がある
	Scopes      string // スペース区切り

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// nilの場合はhttp.DefaultClient
	HTTPClient *http.Client
}

// SBHSOAuthProvider はSBHS IdPに対する認可コード+PKCEの通信を担う。
type SBHSOAuthProvider struct {
	config SBHSOAuthConfig
	oauth  *oauth2.Config
	client *http.Client
}

// NewSBHSOAuthProvider はSBHSOAuthProviderを生成する。
func NewSBHSOAuthProvider(config SBHSOAuthConfig) *SBHSOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultSBHSAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultSBHSTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultSBHSUserInfoURL
	}
	if config.Scopes == "" {
		config.Scopes = defaultSBHSScopes
	}
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &SBHSOAuthProvider{
		config: config,
		oauth: &oauth2.Config{
			ClientID:    config.ClientID,
			RedirectURL: config.RedirectURL,
			Scopes:      strings.Fields(config.Scopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
				// client_idをフォームに含め、Basic認証ヘッダーは使わない
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
	}
}

// AuthCodeURL は認可エンドポイントへのURLを生成する。
// code_verifier自体は含めず、そのハッシュ（code_challenge）のみを渡す。
func (p *SBHSOAuthProvider) AuthCodeURL(state, challenge string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange は認可コードとcode_verifierをアクセストークンに交換する。
// IdPが非2xxを返した場合は*ProviderErrorを返す。
func (p *SBHSOAuthProvider) Exchange(ctx context.Context, code, verifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return "", &ProviderError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
				StatusCode:  status,
			}
		}
		return "", fmt.Errorf("token request failed: %w", err)
	}

	if tok.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return tok.AccessToken, nil
}

// sbhsUserInfo はSBHSのユーザー情報エンドポイントのレスポンス。
// 学籍番号（studentId）を安定した識別子として使い、なければsubを使う。
type sbhsUserInfo struct {
	StudentID   flexibleString `json:"studentId"`
	Sub         flexibleString `json:"sub"`
	DisplayName string         `json:"displayName"`
	Name        string         `json:"name"`
}

// FetchProfile はアクセストークンでユーザー情報を取得する。
// 401の場合はErrTokenInvalidを返す。それ以外の失敗は一時的なエラーとして扱う。
func (p *SBHSOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrTokenInvalid
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info sbhsUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	subject := string(info.StudentID)
	if subject == "" {
		subject = string(info.Sub)
	}
	if subject == "" {
		return nil, fmt.Errorf("empty subject in user info response")
	}

	name := info.DisplayName
	if name == "" {
		name = info.Name
	}

	return &model.Identity{
		Subject:     subject,
		DisplayName: name,
	}, nil
}

// flexibleString はJSONの文字列と数値のどちらも受け付ける。
// 学籍番号が数値で返るケースに対応する。
type flexibleString string

func (s *flexibleString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexibleString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexibleString(n.String())
	return nil
}

// compile-time interface check
var _ Provider = (*SBHSOAuthProvider)(nil)
