package cleaner

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/David-Botos/pos-cleaner/pkg/model"
)

const coImputerName = "categorical_co_imputer"

// Association pairs a payment method with the location it implies
type Association struct {
	PaymentMethod string
	Location      string
}

// paymentLocationTable is consulted forwards (payment -> location) and
// backwards (location -> first matching payment). The reverse lookup never
// yields Digital Wallet: the association is not a bijection.
var paymentLocationTable = []Association{
	{PaymentMethod: "Cash", Location: "In-store"},
	{PaymentMethod: "Credit Card", Location: "Takeaway"},
	{PaymentMethod: "Digital Wallet", Location: "Takeaway"},
}

// Joint default when neither field can be resolved
const (
	DefaultLocation      = "In-store"
	DefaultPaymentMethod = "Cash"
)

// LocationFor returns the location associated with a payment method
func LocationFor(paymentMethod string) (string, bool) {
	for _, a := range paymentLocationTable {
		if a.PaymentMethod == paymentMethod {
			return a.Location, true
		}
	}
	return "", false
}

// PaymentMethodFor returns the first payment method associated with a location
func PaymentMethodFor(location string) (string, bool) {
	for _, a := range paymentLocationTable {
		if a.Location == location {
			return a.PaymentMethod, true
		}
	}
	return "", false
}

// CategoricalCoImputer fills Location from Payment Method and vice versa, then
// applies the joint default. Each rule only sees records earlier rules left
// unresolved.
type CategoricalCoImputer struct{}

// Name implements Stage
func (CategoricalCoImputer) Name() string { return coImputerName }

// Apply implements Stage
func (CategoricalCoImputer) Apply(b *Batch) {
	var fromPayment, fromLocation, defaulted, unmapped int

	// 1. location from payment method
	for _, t := range b.Records {
		if t.Location.Valid || !t.PaymentMethod.Valid {
			continue
		}
		loc, ok := LocationFor(t.PaymentMethod.String)
		if !ok {
			unmapped++
			b.journal.Record(coImputerName, t, model.ColLocation, nil, nil,
				model.OpUnmapped, "no_location_for_payment_"+t.PaymentMethod.String, model.FindingAmbiguousMapping)
			continue
		}
		t.Location = sql.NullString{String: loc, Valid: true}
		fromPayment++
		b.journal.Record(coImputerName, t, model.ColLocation, nil, strPtr(loc),
			model.OpImputeLocation, "from_payment_method", model.FindingNone)
	}

	// 2. payment method from location
	for _, t := range b.Records {
		if t.PaymentMethod.Valid || !t.Location.Valid {
			continue
		}
		pm, ok := PaymentMethodFor(t.Location.String)
		if !ok {
			unmapped++
			b.journal.Record(coImputerName, t, model.ColPaymentMethod, nil, nil,
				model.OpUnmapped, "no_payment_for_location_"+t.Location.String, model.FindingAmbiguousMapping)
			continue
		}
		t.PaymentMethod = sql.NullString{String: pm, Valid: true}
		fromLocation++
		b.journal.Record(coImputerName, t, model.ColPaymentMethod, nil, strPtr(pm),
			model.OpImputePayment, "from_location", model.FindingNone)
	}

	// 3. joint default
	for _, t := range b.Records {
		if t.Location.Valid || t.PaymentMethod.Valid {
			continue
		}
		t.Location = sql.NullString{String: DefaultLocation, Valid: true}
		t.PaymentMethod = sql.NullString{String: DefaultPaymentMethod, Valid: true}
		defaulted++
		b.journal.Record(coImputerName, t, model.ColLocation, nil, strPtr(DefaultLocation),
			model.OpDefaultCategorical, "both_missing", model.FindingNone)
		b.journal.Record(coImputerName, t, model.ColPaymentMethod, nil, strPtr(DefaultPaymentMethod),
			model.OpDefaultCategorical, "both_missing", model.FindingNone)
	}

	b.logger.Info("Co-imputed categorical fields",
		zap.String("stage", coImputerName),
		zap.Int("location_from_payment", fromPayment),
		zap.Int("payment_from_location", fromLocation),
		zap.Int("defaulted", defaulted),
		zap.Int("unmapped", unmapped))
}
