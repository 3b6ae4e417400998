// Package parse decodes B3 bulletin XML documents into quote records.
//
// Bulletin files vary across publishing cycles: some declare the canonical
// bvmf namespace prefixes, some a default namespace, some none at all.
// Every lookup therefore matches elements by local name only.
package parse

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/shopspring/decimal"

	"github.com/b3quotes/b3-quote-service/internal/models"
)

// DateSource records how the session date was resolved, from the dedicated
// trading-date element down to the processing-date fallback
type DateSource int

const (
	DateFromTradingDate DateSource = iota
	DateFromBusinessDate
	DateFromMetadata
	DateFromFallback
)

func (s DateSource) String() string {
	switch s {
	case DateFromTradingDate:
		return "trading_date"
	case DateFromBusinessDate:
		return "business_date"
	case DateFromMetadata:
		return "metadata"
	default:
		return "fallback"
	}
}

// Result holds the outcome of parsing one bulletin document
type Result struct {
	Quotes      []models.Quote
	SessionDate time.Time
	DateSource  DateSource
	Skipped     int
}

var (
	// Spot equities: 3-5 uppercase letters and a 1-2 digit market suffix
	equityPattern = regexp.MustCompile(`^[A-Z]{3,5}[0-9]{1,2}$`)
	// Fund-like instruments: 4-5 letters with the literal "11" suffix
	fundPattern = regexp.MustCompile(`^[A-Z]{4,5}11$`)

	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	digitDatePattern = regexp.MustCompile(`(20\d{6})`)
)

// primaryMarkets are the market identifier codes for standard spot equity
// trading. Off-market and derivative entries carry other codes and are
// excluded.
var primaryMarkets = map[string]bool{
	"BVMF":    true,
	"XBSP":    true,
	"BOVESPA": true,
}

// Parser extracts validated quote records from bulletin documents
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Parser
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger, now: time.Now}
}

// ParseBulletin decodes one bulletin document and returns its validated
// quotes. A malformed price report is skipped and counted, never fatal;
// only an undecodable document produces an error.
func (p *Parser) ParseBulletin(data []byte) (*Result, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode bulletin XML: %w", err)
	}

	sessionDate, dateSource := p.sessionDate(doc)
	if dateSource != DateFromTradingDate {
		p.logger.Warn("session date resolved with degraded confidence",
			"source", dateSource.String(), "date", sessionDate.Format("2006-01-02"))
	}

	result := &Result{SessionDate: sessionDate, DateSource: dateSource}

	for _, report := range xmlquery.Find(doc, "//*[local-name()='PricRpt']") {
		quote, ok := p.parseReport(report, sessionDate)
		if !ok {
			result.Skipped++
			continue
		}
		result.Quotes = append(result.Quotes, quote)
	}

	return result, nil
}

// sessionDate resolves the trading date with progressively weaker
// strategies: the TradDt element, any business-date element, a yyyymmdd run
// in the document's identifying metadata, then the processing date
func (p *Parser) sessionDate(doc *xmlquery.Node) (time.Time, DateSource) {
	if node := xmlquery.FindOne(doc, "//*[local-name()='TradDt']/*[local-name()='Dt']"); node != nil {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(node.InnerText())); err == nil {
			return d, DateFromTradingDate
		}
	}

	for _, node := range xmlquery.Find(doc, "//*[local-name()='BizDt' or local-name()='Dt' or local-name()='CreDtTm']") {
		if m := isoDatePattern.FindString(node.InnerText()); m != "" {
			if d, err := time.Parse("2006-01-02", m); err == nil {
				return d, DateFromBusinessDate
			}
		}
	}

	for _, node := range xmlquery.Find(doc, "//*[local-name()='Id' or local-name()='FileNm' or local-name()='BizMsgIdr']") {
		if m := digitDatePattern.FindString(node.InnerText()); m != "" {
			if d, err := time.Parse("20060102", m); err == nil {
				return d, DateFromMetadata
			}
		}
	}

	return p.now().Truncate(24 * time.Hour), DateFromFallback
}

// parseReport extracts one instrument's session summary. Returns ok=false
// when the record must be dropped: missing ticker, off-market code, invalid
// ticker shape, or no parsable closing price.
func (p *Parser) parseReport(report *xmlquery.Node, sessionDate time.Time) (models.Quote, bool) {
	ticker := childText(report, "TckrSymb")
	if ticker == "" {
		return models.Quote{}, false
	}

	market := childText(report, "MktIdrCd")
	if !primaryMarkets[market] {
		return models.Quote{}, false
	}

	if !equityPattern.MatchString(ticker) && !fundPattern.MatchString(ticker) {
		return models.Quote{}, false
	}

	attrs := xmlquery.FindOne(report, ".//*[local-name()='FinInstrmAttrbts']")
	if attrs == nil {
		return models.Quote{}, false
	}

	closePrice, err := decimal.NewFromString(childText(attrs, "LastPric"))
	if err != nil {
		p.logger.Debug("dropping record without closing price", "ticker", ticker)
		return models.Quote{}, false
	}

	return models.Quote{
		Ticker:      ticker,
		TradingDate: sessionDate,
		Open:        priceOrDefault(attrs, "FrstPric", closePrice),
		Close:       closePrice,
		High:        priceOrDefault(attrs, "MaxPric", closePrice),
		Low:         priceOrDefault(attrs, "MinPric", closePrice),
		Volume:      quantityOrZero(attrs, "RglrTxsQty"),
	}, true
}

// childText returns the trimmed text of the first descendant with the given
// local name, or ""
func childText(node *xmlquery.Node, localName string) string {
	child := xmlquery.FindOne(node, fmt.Sprintf(".//*[local-name()='%s']", localName))
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

// priceOrDefault parses an optional price field, falling back to the
// closing price when the element is absent or unparsable
func priceOrDefault(attrs *xmlquery.Node, localName string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(childText(attrs, localName))
	if err != nil {
		return fallback
	}
	return v
}

// quantityOrZero parses an optional traded quantity, truncating
// decimal-looking text to an integer and defaulting to 0
func quantityOrZero(attrs *xmlquery.Node, localName string) int64 {
	v, err := decimal.NewFromString(childText(attrs, localName))
	if err != nil {
		return 0
	}
	return v.IntPart()
}
