package identify

import "regexp"

// idPattern is one extraction rule for order or confirmation identifiers.
// Patterns with a capture group extract the group; bare patterns extract the
// whole match.
type idPattern struct {
	regex *regexp.Regexp
	name  string
}

// Brokerage confirmation emails label identifiers inconsistently, so rules
// run in order from most to least specific and all candidates are validated
// before inclusion.
var orderIDPatterns = []idPattern{
	{
		name:  "labeled order number",
		regex: regexp.MustCompile(`(?i)order\s*(?:number|no\.?|id|ref(?:erence)?|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{4,23})`),
	},
	{
		name:  "prefixed order code",
		regex: regexp.MustCompile(`\b(?:ORD|ORDER)[-#]([A-Z0-9]{5,20})\b`),
	},
	{
		name:  "alphanumeric code",
		regex: regexp.MustCompile(`\b([A-Z]{1,4}-\d{6,16})\b`),
	},
	{
		name:  "numeric id",
		regex: regexp.MustCompile(`\b(\d{10,15})\b`),
	},
}

var confirmationPatterns = []idPattern{
	{
		name:  "labeled confirmation number",
		regex: regexp.MustCompile(`(?i)confirmation\s*(?:number|no\.?|code|id|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{4,23})`),
	},
	{
		name:  "prefixed confirmation code",
		regex: regexp.MustCompile(`\b(?:CONF|CNF)[-#]([A-Z0-9]{5,20})\b`),
	},
	{
		name:  "trade reference",
		regex: regexp.MustCompile(`(?i)trade\s*(?:reference|ref\.?)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{4,23})`),
	},
}

// Fingerprint field extraction over the unmodified subject and body text.
var (
	symbolPattern   = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	quantityPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:shares?|sh|units?|contracts?)\b`)
	pricePattern    = regexp.MustCompile(`(?:[@$]\s*)(\d+(?:\.\d+)?)`)
	datePattern     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)

	messageIDHeader = regexp.MustCompile(`(?im)^message-id:\s*<?([^<>\r\n]+)>?\s*$`)
)

// symbolStopwords are uppercase tokens common in confirmation emails that
// are never ticker symbols.
var symbolStopwords = map[string]struct{}{
	"A": {}, "AM": {}, "PM": {}, "AND": {}, "AT": {}, "BUY": {}, "SELL": {},
	"EST": {}, "EDT": {}, "PST": {}, "PDT": {}, "UTC": {}, "GMT": {},
	"FOR": {}, "OF": {}, "ON": {}, "OR": {}, "THE": {}, "TO": {}, "USD": {},
	"CAD": {}, "EUR": {}, "NEW": {}, "YOUR": {}, "HAS": {}, "ORDER": {},
	"TRADE": {}, "IRA": {}, "ROTH": {}, "ID": {}, "NO": {}, "RE": {},
	"FW": {}, "FWD": {},
}
