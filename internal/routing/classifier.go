package routing

import (
	"net/url"
	"strings"

	"github.com/fincore/xs2a-consent-gateway/internal/domain"
)

// Path constants of the Berlin Group API surface.
const (
	consentsPath                   = "consents"
	paymentsPath                   = "payments"
	bulkPaymentsPath               = "bulk-payments"
	periodicPaymentsPath           = "periodic-payments"
	accountsPath                   = "accounts"
	cardAccountsPath               = "card-accounts"
	fundsConfirmationsPath         = "funds-confirmations"
	confirmationOfFundsPath        = "confirmation-of-funds"
	authorisationsPathEnd          = "authorisations"
	cancellationAuthorisationsPath = "cancellation-authorisations"
	transactionsPath               = "transactions"
)

// Classify maps a raw request path to its canonical service category.
// It is a pure function: same input always yields the same category, and
// every input resolves to a category (CategoryUnknown included).
//
// Tie-break order, first match wins:
//  1. a cancellation-authorisations segment anywhere in the path
//  2. an authorisations segment anywhere in the path
//  3. the service root derived from the leading segments
func Classify(path string) domain.ServiceCategory {
	segments := domain.PathSegments(path)
	if len(segments) == 0 {
		return domain.CategoryUnknown
	}

	for _, segment := range segments {
		if segment == cancellationAuthorisationsPath {
			return domain.CategoryCancellationAuthorisation
		}
	}
	for _, segment := range segments {
		if segment == authorisationsPathEnd {
			return domain.CategoryExplicitAuthorisation
		}
	}

	switch segments[0] {
	case consentsPath:
		// The funds-confirmation consent surface nests under consents.
		if len(segments) > 1 && segments[1] == confirmationOfFundsPath {
			return domain.CategoryFundsConfirmations
		}
		return domain.CategoryAccounts
	case accountsPath:
		return domain.CategoryAccounts
	case cardAccountsPath:
		return domain.CategoryCardAccounts
	case paymentsPath:
		return domain.CategoryPayments
	case bulkPaymentsPath:
		return domain.CategoryBulkPayments
	case periodicPaymentsPath:
		return domain.CategoryPeriodicPayments
	case fundsConfirmationsPath:
		return domain.CategoryFundsConfirmations
	default:
		return domain.CategoryUnknown
	}
}

// ExtractParams extracts the path and query parameters a handler may need.
// Template placeholders used in tests ({account-id} and friends) are treated
// as opaque segment values; extraction is structural, not value-based.
func ExtractParams(path string) map[string]string {
	params := make(map[string]string)

	rawQuery := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		rawQuery = path[i+1:]
	}
	segments := domain.PathSegments(path)
	if len(segments) == 0 {
		return params
	}

	switch segments[0] {
	case consentsPath:
		if len(segments) > 1 && segments[1] == confirmationOfFundsPath {
			if len(segments) > 2 {
				params["consentId"] = segments[2]
			}
		} else if len(segments) > 1 {
			params["consentId"] = segments[1]
		}
	case paymentsPath, bulkPaymentsPath, periodicPaymentsPath:
		if len(segments) > 1 {
			params["paymentProduct"] = segments[1]
		}
		if len(segments) > 2 {
			params["paymentId"] = segments[2]
		}
	case accountsPath, cardAccountsPath:
		if len(segments) > 1 {
			params["accountId"] = segments[1]
		}
		for i, segment := range segments {
			if segment == transactionsPath && i+1 < len(segments) {
				params["transactionId"] = segments[i+1]
			}
		}
	case fundsConfirmationsPath:
		if len(segments) > 1 {
			params["consentId"] = segments[1]
		}
	}

	for i, segment := range segments {
		if (segment == authorisationsPathEnd || segment == cancellationAuthorisationsPath) && i+1 < len(segments) {
			params["authorisationId"] = segments[i+1]
		}
	}

	if rawQuery != "" {
		if values, err := url.ParseQuery(rawQuery); err == nil {
			for key := range values {
				params[key] = values.Get(key)
			}
		}
	}

	return params
}
