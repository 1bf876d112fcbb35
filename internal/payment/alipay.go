package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/smartwalle/alipay/v3"

	"github.com/digkill/LandingForge/internal/models"
)

const alipayTradeNotExist = "ACQ.TRADE_NOT_EXIST"

type AlipayConfig struct {
	AppID string
	// PrivateKey is the merchant application key (PEM or bare base64 DER).
	PrivateKey string
	// PublicKey is Alipay's platform public key (PEM or bare base64 DER).
	PublicKey string
	// Production selects the live gateway; false uses the sandbox.
	Production bool
	NotifyURL  string
	Subject    string
	Timeout    time.Duration
}

// alipayTrades is the part of *alipay.Client the provider calls. The client signs
// requests with the merchant key and verifies every response and notification
// against the platform key.
type alipayTrades interface {
	TradePreCreate(ctx context.Context, param alipay.TradePreCreate) (*alipay.TradePreCreateRsp, error)
	TradeQuery(ctx context.Context, param alipay.TradeQuery) (*alipay.TradeQueryRsp, error)
	DecodeNotification(ctx context.Context, values url.Values) (*alipay.Notification, error)
}

// AlipayProvider checks out through alipay.trade.precreate, which returns a QR code
// the wallet app scans.
type AlipayProvider struct {
	appID     string
	notifyURL string
	subject   string
	trades    alipayTrades
}

func NewAlipayProvider(cfg AlipayConfig) (*AlipayProvider, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("alipay app id is not configured")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("alipay private key is empty")
	}
	if strings.TrimSpace(cfg.PublicKey) == "" {
		return nil, fmt.Errorf("alipay public key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "LandingForge credits"
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.Production, alipay.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("alipay private key: %w", err)
	}
	if err := client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, fmt.Errorf("alipay public key: %w", err)
	}
	return &AlipayProvider{
		appID:     cfg.AppID,
		notifyURL: cfg.NotifyURL,
		subject:   subject,
		trades:    client,
	}, nil
}

func (p *AlipayProvider) Kind() models.Provider {
	return models.ProviderAlipay
}

func alipayErr(method string, e alipay.Error) error {
	return fmt.Errorf("alipay %s failed: code=%s msg=%s sub_code=%s sub_msg=%s", method, e.Code, e.Msg, e.SubCode, e.SubMsg)
}

// CreateCheckout pre-creates a trade and renders its QR code. The QR flow has no
// browser redirect, so successURL and cancelURL are not sent to Alipay; the client
// polls the confirm endpoint instead.
func (p *AlipayProvider) CreateCheckout(ctx context.Context, order *models.Order, _, _ string) (*Checkout, error) {
	var param alipay.TradePreCreate
	param.NotifyURL = p.notifyURL
	param.OutTradeNo = order.OrderNo
	param.TotalAmount = formatMinorUnits(order.Amount)
	param.Subject = fmt.Sprintf("%s (%d)", p.subject, order.Credits)
	param.TimeoutExpress = "30m"

	rsp, err := p.trades.TradePreCreate(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("alipay precreate: %w", err)
	}
	if rsp.IsFailure() {
		return nil, alipayErr("alipay.trade.precreate", rsp.Error)
	}
	if rsp.QRCode == "" {
		return nil, fmt.Errorf("alipay precreate returned no qr_code for %s", order.OrderNo)
	}

	png, err := qrcode.Encode(rsp.QRCode, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return &Checkout{
		RedirectTarget: rsp.QRCode,
		SessionRef:     order.OrderNo,
		QRCode:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

func (p *AlipayProvider) VerifyNotification(ctx context.Context, in Inbound) Notification {
	values, err := url.ParseQuery(string(in.Body))
	if err != nil {
		return rejected("parse alipay notification: %v", err)
	}
	if values.Get("sign") == "" {
		return rejected("alipay notification has no sign")
	}
	if st := values.Get("sign_type"); st != "" && st != "RSA2" {
		return rejected("unsupported sign_type %q", st)
	}
	decoded, err := p.trades.DecodeNotification(ctx, values)
	if err != nil {
		return rejected("alipay signature: %v", err)
	}
	if decoded.AppId != p.appID {
		return rejected("notification for foreign app_id %q", decoded.AppId)
	}

	n := Notification{
		Authentic:       true,
		OrderNo:         decoded.OutTradeNo,
		ProviderOrderNo: decoded.TradeNo,
		Raw:             string(in.Body),
	}
	if n.OrderNo == "" {
		return rejected("alipay notification has no out_trade_no")
	}
	if total := decoded.TotalAmount; total != "" {
		amount, err := parseMinorUnits(total)
		if err != nil {
			return rejected("alipay total_amount %q: %v", total, err)
		}
		n.Amount = amount
	}
	applyTradeStatus(&n, decoded.TradeStatus)
	return n
}

func (p *AlipayProvider) QueryOrder(ctx context.Context, order *models.Order) (Notification, error) {
	rsp, err := p.trades.TradeQuery(ctx, alipay.TradeQuery{OutTradeNo: order.OrderNo})
	if err != nil {
		return Notification{}, fmt.Errorf("alipay query: %w", err)
	}
	n := Notification{Authentic: true, OrderNo: order.OrderNo}
	if rsp.SubCode == alipayTradeNotExist {
		// The buyer has not scanned the code yet.
		return n, nil
	}
	if rsp.IsFailure() {
		return Notification{}, alipayErr("alipay.trade.query", rsp.Error)
	}
	if rsp.OutTradeNo != "" && rsp.OutTradeNo != order.OrderNo {
		return Notification{}, fmt.Errorf("alipay query answered for order %q", rsp.OutTradeNo)
	}
	n.ProviderOrderNo = rsp.TradeNo
	n.Raw = fmt.Sprintf("trade_no=%s trade_status=%s total_amount=%s", rsp.TradeNo, rsp.TradeStatus, rsp.TotalAmount)
	if rsp.TotalAmount != "" {
		amount, err := parseMinorUnits(rsp.TotalAmount)
		if err != nil {
			return Notification{}, fmt.Errorf("alipay total_amount %q: %w", rsp.TotalAmount, err)
		}
		n.Amount = amount
	}
	applyTradeStatus(&n, rsp.TradeStatus)
	return n, nil
}

func (p *AlipayProvider) Acknowledge() (string, []byte) {
	return "text/plain; charset=utf-8", []byte("success")
}

// applyTradeStatus leaves unknown statuses neither settled nor failed.
func applyTradeStatus(n *Notification, status alipay.TradeStatus) {
	switch status {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		n.Settled = true
	case alipay.TradeStatusClosed:
		n.Failed = true
	}
}

func formatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

func parseMinorUnits(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("more than two decimal places")
	}
	return shifted.IntPart(), nil
}
