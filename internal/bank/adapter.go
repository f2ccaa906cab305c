package bank

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

// Callback field names the gateway posts back through the cardholder's
// browser. The hash covers all of them except HASH/encoding themselves.
const (
	FieldMDStatus  = "mdStatus"
	FieldOrderID   = "oid"
	FieldMD        = "md"
	FieldXID       = "xid"
	FieldCAVV      = "cavv"
	FieldECI       = "eci"
	FieldAmount    = "amount"
	FieldMaskedPan = "MaskedPan"
	FieldCardBrand = "EXTRA.CARDBRAND"
	FieldIssuer    = "EXTRA.CARDISSUER"
	FieldErrMsg    = "ErrMsg"
)

type Config struct {
	// Merchant credentials issued by the bank.
	ClientID string
	Name     string
	Password string
	// StoreKey signs the 3-D Secure form and the browser-relayed callback.
	StoreKey string
	// EndpointURL is the XML API; GatewayURL is the browser redirect target.
	EndpointURL string
	GatewayURL  string
	OKURL       string
	FailURL     string
	// Currency is the ISO 4217 numeric code ("949" for TRY).
	Currency string
}

// ChargeResult is the typed outcome of one gateway call. A declined card is a
// result, not an error; only transport problems surface as errors.
type ChargeResult struct {
	Approved       bool
	ResponseText   string
	ReturnCode     string
	AuthCode       string
	TransactionID  string
	HostRefNum     string
	ErrCode        string
	ErrMessage     string
	OrderCode      string
}

type Adapter struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

func NewAdapter(cfg Config, log *slog.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// RedirectForm is what the checkout page posts to the bank to open the 3-D
// Secure session.
type RedirectForm struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// BuildRedirectForm assembles the signed 3-D Secure form for an order.
func (a *Adapter) BuildRedirectForm(orderCode string, amount float64) RedirectForm {
	fields := map[string]string{
		"clientid":  a.cfg.ClientID,
		"oid":       orderCode,
		"amount":    formatAmount(amount),
		"okurl":     a.cfg.OKURL,
		"failurl":   a.cfg.FailURL,
		"islemtipi": "Auth",
		"taksit":    "",
		"currency":  a.cfg.Currency,
		"rnd":       uuid.NewString(),
		"storetype": "3d",
	}
	fields["hash"] = GenerateHash(fields, a.cfg.StoreKey)
	return RedirectForm{URL: a.cfg.GatewayURL, Fields: fields}
}

// ValidateCallback checks the tamper-detection hash on a received callback.
func (a *Adapter) ValidateCallback(fields map[string]string) bool {
	return ValidateHash(fields, a.cfg.StoreKey)
}

// MDStatusApproved reports whether the 3-D Secure status code means the
// cardholder completed verification (full or attempted).
func MDStatusApproved(fields map[string]string) bool {
	switch fields[FieldMDStatus] {
	case "1", "2", "3", "4":
		return true
	}
	return false
}

type cc5Request struct {
	XMLName                 xml.Name `xml:"CC5Request"`
	Name                    string   `xml:"Name"`
	Password                string   `xml:"Password"`
	ClientID                string   `xml:"ClientId"`
	Type                    string   `xml:"Type"`
	IPAddress               string   `xml:"IPAddress,omitempty"`
	OrderID                 string   `xml:"OrderId"`
	Total                   string   `xml:"Total"`
	Currency                string   `xml:"Currency"`
	PayerTxnID              string   `xml:"PayerTxnId,omitempty"`
	PayerSecurityLevel      string   `xml:"PayerSecurityLevel,omitempty"`
	PayerAuthenticationCode string   `xml:"PayerAuthenticationCode,omitempty"`
	Number                  string   `xml:"Number,omitempty"`
}

type cc5Response struct {
	XMLName        xml.Name `xml:"CC5Response"`
	OrderID        string   `xml:"OrderId"`
	Response       string   `xml:"Response"`
	ProcReturnCode string   `xml:"ProcReturnCode"`
	AuthCode       string   `xml:"AuthCode"`
	HostRefNum     string   `xml:"HostRefNum"`
	TransID        string   `xml:"TransId"`
	ErrMsg         string   `xml:"ErrMsg"`
	Extra          struct {
		ErrorCode string `xml:"ERRORCODE"`
	} `xml:"Extra"`
}

// ChargeParams carries the verification fields from a validated callback into
// the synchronous finalize call.
type ChargeParams struct {
	OrderCode string
	Amount    float64
	ClientIP  string
	MD        string
	XID       string
	CAVV      string
	ECI       string
}

// Charge posts the XML envelope to the bank and parses the outcome. Approval
// requires return code "00" together with an approved response text; every
// other combination is a declined payment, not an error.
func (a *Adapter) Charge(ctx context.Context, p ChargeParams) (*ChargeResult, error) {
	req := cc5Request{
		Name:                    a.cfg.Name,
		Password:                a.cfg.Password,
		ClientID:                a.cfg.ClientID,
		Type:                    "Auth",
		IPAddress:               p.ClientIP,
		OrderID:                 p.OrderCode,
		Total:                   formatAmount(p.Amount),
		Currency:                a.cfg.Currency,
		PayerTxnID:              p.XID,
		PayerSecurityLevel:      p.ECI,
		PayerAuthenticationCode: p.CAVV,
		Number:                  p.MD,
	}

	envelope, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal bank request: %w", err)
	}

	form := url.Values{"DATA": {string(envelope)}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.EndpointURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build bank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed cc5Response
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrGatewayUnavailable, err)
	}

	result := &ChargeResult{
		Approved:      parsed.ProcReturnCode == "00" && strings.EqualFold(parsed.Response, "Approved"),
		ResponseText:  parsed.Response,
		ReturnCode:    parsed.ProcReturnCode,
		AuthCode:      parsed.AuthCode,
		TransactionID: parsed.TransID,
		HostRefNum:    parsed.HostRefNum,
		ErrCode:       parsed.Extra.ErrorCode,
		ErrMessage:    parsed.ErrMsg,
		OrderCode:     parsed.OrderID,
	}

	a.log.Info("bank charge finished",
		"order_code", p.OrderCode,
		"return_code", result.ReturnCode,
		"approved", result.Approved)

	return result, nil
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}
