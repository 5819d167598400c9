package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for CreatePaymentRequest: mandate
	// linkage fields come in pairs that tags alone cannot express.
	v.RegisterStructValidation(createPaymentStructValidation, CreatePaymentRequest{})

	return v
}

// createPaymentStructValidation checks mandate-linkage consistency:
// reusing a mandate needs its id, establishing one needs a customer to own it.
func createPaymentStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreatePaymentRequest)

	if req.MandateIntent == "uses" && req.MandateID == "" {
		sl.ReportError(req.MandateID, "mandate_id", "MandateID", "required_for_mandate_reuse", "")
	}
	if req.MandateIntent == "creates" && req.CustomerID == "" {
		sl.ReportError(req.CustomerID, "customer_id", "CustomerID", "required_for_mandate_setup", "")
	}
	if req.MandateIntent != "uses" && req.MandateID != "" {
		sl.ReportError(req.MandateID, "mandate_id", "MandateID", "mandate_id_without_reuse", "")
	}
}
