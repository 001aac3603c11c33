// Package plaid adapts the Plaid API client to the application ports.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	plaidapi "github.com/plaid/plaid-go/v29/plaid"

	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

const (
	defaultClientName = "Personal Finance App"
	linkLanguage      = "en"
	statementDateFmt  = "2006-01-02"
)

// Config configures the Plaid API client.
type Config struct {
	ClientID    string
	Secret      string
	Environment string
	ClientName  string
	WebhookURL  string
	RedirectURI string
	HTTPClient  *http.Client
}

// Client implements the aggregator ports on top of the Plaid API.
type Client struct {
	api         *plaidapi.PlaidApiService
	clientName  string
	webhookURL  string
	redirectURI string
	now         func() time.Time
	log         *slog.Logger
}

// NewClient builds a Plaid client for the configured environment.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("plaid client id and secret are required")
	}
	env, err := environment(cfg.Environment)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	configuration := plaidapi.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(env)
	if cfg.HTTPClient != nil {
		configuration.HTTPClient = cfg.HTTPClient
	}

	clientName := strings.TrimSpace(cfg.ClientName)
	if clientName == "" {
		clientName = defaultClientName
	}

	return &Client{
		api:         plaidapi.NewAPIClient(configuration).PlaidApi,
		clientName:  clientName,
		webhookURL:  strings.TrimSpace(cfg.WebhookURL),
		redirectURI: strings.TrimSpace(cfg.RedirectURI),
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}, nil
}

func environment(name string) (plaidapi.Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sandbox":
		return plaidapi.Sandbox, nil
	case "production":
		return plaidapi.Production, nil
	default:
		return "", fmt.Errorf("unsupported plaid environment %q", name)
	}
}

// FetchVerificationKey resolves a webhook signing key by key id.
func (c *Client) FetchVerificationKey(ctx context.Context, keyID string) (domain.VerificationKey, error) {
	request := plaidapi.NewWebhookVerificationKeyGetRequest(keyID)
	response, _, err := c.api.WebhookVerificationKeyGet(ctx).WebhookVerificationKeyGetRequest(*request).Execute()
	if err != nil {
		return domain.VerificationKey{}, apiError("webhook verification key get", err)
	}

	key := response.GetKey()
	jwk := JWK{
		KeyID:     key.GetKid(),
		KeyType:   key.GetKty(),
		Curve:     key.GetCrv(),
		X:         key.GetX(),
		Y:         key.GetY(),
		Algorithm: key.GetAlg(),
		Use:       key.GetUse(),
		CreatedAt: int64(key.GetCreatedAt()),
	}
	if expiredAt, ok := key.GetExpiredAtOk(); ok && expiredAt != nil {
		value := int64(*expiredAt)
		jwk.ExpiredAt = &value
	}
	return VerificationKeyFromJWK(jwk, c.now())
}

// ExchangePublicToken trades a public token for a durable access credential.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (ports.TokenExchange, error) {
	request := plaidapi.NewItemPublicTokenExchangeRequest(publicToken)
	response, _, err := c.api.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return ports.TokenExchange{}, apiError("item public token exchange", err)
	}
	return ports.TokenExchange{AccessToken: response.GetAccessToken(), ItemID: response.GetItemId()}, nil
}

// ListStatements returns the statements available per account.
func (c *Client) ListStatements(ctx context.Context, accessToken string) ([]ports.StatementAccount, error) {
	request := plaidapi.NewStatementsListRequest(accessToken)
	response, _, err := c.api.StatementsList(ctx).StatementsListRequest(*request).Execute()
	if err != nil {
		return nil, apiError("statements list", err)
	}

	accounts := make([]ports.StatementAccount, 0, len(response.GetAccounts()))
	for _, account := range response.GetAccounts() {
		refs := make([]ports.StatementRef, 0, len(account.GetStatements()))
		for _, statement := range account.GetStatements() {
			refs = append(refs, ports.StatementRef{
				StatementID: statement.GetStatementId(),
				Month:       int(statement.GetMonth()),
				Year:        int(statement.GetYear()),
			})
		}
		accounts = append(accounts, ports.StatementAccount{
			AccountID:   account.GetAccountId(),
			AccountName: account.GetAccountName(),
			Statements:  refs,
		})
	}
	c.log.DebugContext(ctx, "Plaid statements listed", "accounts", len(accounts))
	return accounts, nil
}

// DownloadStatement returns the PDF bytes of one statement.
func (c *Client) DownloadStatement(ctx context.Context, accessToken, statementID string) ([]byte, error) {
	request := plaidapi.NewStatementsDownloadRequest(accessToken, statementID)
	file, _, err := c.api.StatementsDownload(ctx).StatementsDownloadRequest(*request).Execute()
	if err != nil {
		return nil, apiError("statements download", err)
	}
	if file == nil {
		return nil, fmt.Errorf("statements download: empty response for %s", statementID)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}()

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind statement %s: %w", statementID, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read statement %s: %w", statementID, err)
	}
	return data, nil
}

// CreateLinkToken creates a hosted link session restricted to checking and
// savings accounts with the statements product.
func (c *Client) CreateLinkToken(ctx context.Context, input ports.LinkTokenInput) (ports.LinkToken, error) {
	user := plaidapi.LinkTokenCreateRequestUser{ClientUserId: input.ClientUserID}
	request := plaidapi.NewLinkTokenCreateRequest(c.clientName, linkLanguage, []plaidapi.CountryCode{plaidapi.COUNTRYCODE_US}, user)
	request.SetProducts([]plaidapi.Products{plaidapi.PRODUCTS_STATEMENTS})
	request.SetStatements(*plaidapi.NewLinkTokenCreateRequestStatements(
		input.StatementsFrom.Format(statementDateFmt),
		input.StatementsTo.Format(statementDateFmt),
	))

	filters := plaidapi.NewLinkTokenAccountFilters()
	filters.SetDepository(*plaidapi.NewDepositoryFilter([]plaidapi.DepositoryAccountSubtype{
		plaidapi.DEPOSITORYACCOUNTSUBTYPE_CHECKING,
		plaidapi.DEPOSITORYACCOUNTSUBTYPE_SAVINGS,
	}))
	request.SetAccountFilters(*filters)
	request.SetHostedLink(*plaidapi.NewLinkTokenCreateHostedLink())
	if c.webhookURL != "" {
		request.SetWebhook(c.webhookURL)
	}
	if c.redirectURI != "" {
		request.SetRedirectUri(c.redirectURI)
	}

	response, _, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return ports.LinkToken{}, apiError("link token create", err)
	}
	return ports.LinkToken{
		LinkToken:     response.GetLinkToken(),
		HostedLinkURL: response.GetHostedLinkUrl(),
		Expiration:    response.GetExpiration(),
	}, nil
}

// apiError flattens the Plaid error body into the returned error.
func apiError(operation string, err error) error {
	if plaidErr, convErr := plaidapi.ToPlaidError(err); convErr == nil && plaidErr.ErrorCode != "" {
		return fmt.Errorf("%s: %s %s: %s", operation, plaidErr.ErrorType, plaidErr.ErrorCode, plaidErr.ErrorMessage)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

var (
	_ ports.KeyFetcher          = (*Client)(nil)
	_ ports.TokenExchangeClient = (*Client)(nil)
	_ ports.StatementClient     = (*Client)(nil)
	_ ports.LinkTokenClient     = (*Client)(nil)
)
