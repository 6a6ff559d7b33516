package edgeclient

import "encoding/json"

// DecodeExternalLinkResult decodes task_result for a
// get_external_link_from_transid task: a bare string holding the invoice
// page URL.
func DecodeExternalLinkResult(raw RawTaskResult) (string, error) {
	var url string
	if err := json.Unmarshal(raw, &url); err != nil {
		return "", err
	}
	return url, nil
}

// DecodeCartResult decodes task_result for an add_subids_to_cart task.
func DecodeCartResult(raw RawTaskResult) (CartResult, error) {
	var result CartResult
	if raw.IsNull() {
		return result, nil
	}
	err := json.Unmarshal(raw, &result)
	return result, err
}

// CheckoutResult is the sum of checkout_cart's two task_result shapes: a bare
// ETransactionResult integer, or an object carrying result/payment_method.
// Which one applies is decided by attempting the integer decode first.
type CheckoutResult struct {
	IsCode bool
	Code   CheckoutResultCode
	Object CheckoutResultObject
}

// DecodeCheckoutResult distinguishes the two task_result shapes by probing
// whether the raw JSON unmarshals as a number first.
func DecodeCheckoutResult(raw RawTaskResult) (CheckoutResult, error) {
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		return CheckoutResult{IsCode: true, Code: CheckoutResultCode(code)}, nil
	}

	var obj CheckoutResultObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CheckoutResult{}, err
	}

	return CheckoutResult{Object: obj}, nil
}
