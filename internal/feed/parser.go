package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/logger"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
	"github.com/MrSnakeDoc/stockroom/internal/utils"
)

const offerElement = "offer"

// offerXML mirrors one <offer> element of the supplier feed.
type offerXML struct {
	ID              string   `xml:"id"`
	UUID            string   `xml:"uuid"`
	Name            string   `xml:"name"`
	EAN             string   `xml:"EAN"`
	Producer        string   `xml:"producer"`
	URL             string   `xml:"url"`
	Category        string   `xml:"category"`
	Price           string   `xml:"price"`
	DiscountedPrice string   `xml:"discounted_price"`
	VAT             string   `xml:"vat"`
	Stock           string   `xml:"stock"`
	Pictures        []string `xml:"pictures>picture"`
}

// Options tune parsing policy.
type Options struct {
	// DefaultVAT is used when an offer carries no integer VAT.
	DefaultVAT int
	// SkipOutOfStock drops offers with stock <= 0 at parse time.
	SkipOutOfStock bool
}

// Result is the outcome of one successful parse.
type Result struct {
	Entries     []domain.FeedEntry
	Skipped     int
	Duplicates  int
	PriceErrors int
	OutOfStock  int

	byID map[string]int
}

// Lookup returns the offer with the given feed id.
func (r *Result) Lookup(id string) (domain.FeedEntry, bool) {
	i, ok := r.byID[domain.NormalizeXMLID(id)]
	if !ok {
		return domain.FeedEntry{}, false
	}
	return r.Entries[i], true
}

// Parser reads the supplier feed from a local file.
type Parser struct {
	path string
	opts Options
	log  logger.Logger
}

func NewParser(path string, opts Options, log logger.Logger) *Parser {
	return &Parser{
		path: path,
		opts: opts,
		log:  log,
	}
}

// Path returns the configured feed file.
func (p *Parser) Path() string {
	return p.path
}

// Parse reads the configured feed, or pathOverride when non-empty.
func (p *Parser) Parse(pathOverride string) (*Result, error) {
	path := p.path
	if pathOverride != "" {
		path = pathOverride
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, unavailable(path, err)
	}
	defer utils.MustClose(f, p.log)

	res, err := p.ParseReader(f)
	if err != nil {
		return nil, malformed(path, err)
	}
	return res, nil
}

// Find parses the configured feed and returns the offer with id.
func (p *Parser) Find(id string) (domain.FeedEntry, error) {
	res, err := p.Parse("")
	if err != nil {
		return domain.FeedEntry{}, err
	}
	entry, ok := res.Lookup(id)
	if !ok {
		return domain.FeedEntry{}, fmt.Errorf("offer %q: %w", id, domain.ErrFeedEntryNotFound)
	}
	return entry, nil
}

// ParseReader streams offers from r. Offers may sit at any depth.
func (p *Parser) ParseReader(r io.Reader) (*Result, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	res := &Result{byID: make(map[string]int)}
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if se.Name.Local != offerElement {
			continue
		}

		var raw offerXML
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return nil, err
		}
		p.accept(res, raw)
	}

	if !sawRoot {
		return nil, errors.New("document has no root element")
	}

	if res.Skipped > 0 || res.Duplicates > 0 || res.PriceErrors > 0 {
		p.log.Warn("feed parsed with rejected offers",
			logger.Int("accepted", len(res.Entries)),
			logger.Int("skipped", res.Skipped),
			logger.Int("duplicates", res.Duplicates),
			logger.Int("price_errors", res.PriceErrors),
		)
	}
	return res, nil
}

func (p *Parser) accept(res *Result, raw offerXML) {
	id := domain.NormalizeXMLID(raw.ID)
	if id == "" {
		res.Skipped++
		p.log.Warn("offer without id skipped", logger.String("name", strings.TrimSpace(raw.Name)))
		return
	}
	if _, dup := res.byID[id]; dup {
		res.Duplicates++
		p.log.Warn("duplicate offer id skipped", logger.String("xml_id", id))
		return
	}

	entry := p.normalize(id, raw)
	if entry.PriceError {
		res.PriceErrors++
		p.log.Warn("offer price unparsable, prices zeroed",
			logger.String("xml_id", id),
			logger.String("price", raw.Price),
			logger.String("discounted_price", raw.DiscountedPrice),
		)
	}
	if p.opts.SkipOutOfStock && entry.Stock <= 0 {
		res.OutOfStock++
		return
	}

	res.byID[id] = len(res.Entries)
	res.Entries = append(res.Entries, entry)
}

func (p *Parser) normalize(id string, raw offerXML) domain.FeedEntry {
	path := CategoryPath(raw.Category)
	entry := domain.FeedEntry{
		ID:           id,
		UUID:         strings.TrimSpace(raw.UUID),
		Name:         strings.TrimSpace(raw.Name),
		EAN:          strings.TrimSpace(raw.EAN),
		Producer:     strings.TrimSpace(raw.Producer),
		URL:          strings.TrimSpace(raw.URL),
		Category:     path[len(path)-1],
		CategoryPath: path,
		VAT:          pricing.ParseVAT(raw.VAT, p.opts.DefaultVAT),
		Stock:        parseStock(raw.Stock),
		Images:       pictures(raw.Pictures),
	}
	if len(entry.Images) > 0 {
		entry.Image = domain.StringPtr(entry.Images[0])
	}

	regular, errRegular := pricing.ParseAmount(raw.Price)
	discounted, errDiscounted := pricing.ParseAmount(raw.DiscountedPrice)
	if errRegular != nil || errDiscounted != nil {
		entry.PriceError = true
		return entry
	}

	entry.PriceNet = nonNegative(regular)
	entry.DiscountedNet = nonNegative(discounted)
	entry.PriceNetXML = entry.PriceNet
	if entry.DiscountedNet != 0 {
		entry.PriceNetXML = entry.DiscountedNet
	}
	entry.OriginalPrice = pricing.GrossFromNet(entry.PriceNetXML, entry.VAT)
	return entry
}

var categorySeparators = strings.NewReplacer("&amp;gt;", ">", "&gt;", ">")

// CategoryPath splits a feed category string such as "Home &gt; Garden > Tools"
// into trimmed, non-empty segments.
func CategoryPath(text string) []string {
	text = categorySeparators.Replace(text)

	var path []string
	for _, seg := range strings.Split(text, ">") {
		if seg = strings.TrimSpace(seg); seg != "" {
			path = append(path, seg)
		}
	}
	if len(path) == 0 {
		return []string{domain.UncategorizedLabel}
	}
	return path
}

func parseStock(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func pictures(raw []string) []string {
	images := make([]string, 0, len(raw))
	for _, pic := range raw {
		if pic = strings.TrimSpace(pic); pic != "" {
			images = append(images, pic)
		}
	}
	return images
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
