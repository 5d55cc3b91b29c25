package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ExpectedSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)), the
// value Razorpay attaches to a successful checkout.
func ExpectedSignature(gatewayOrderID, gatewayPaymentID, secret string) string {
	mac := computeHMACSHA256([]byte(gatewayOrderID+"|"+gatewayPaymentID), []byte(secret))
	return hex.EncodeToString(mac)
}

// VerifyPaymentSignature reports whether signature is exactly the expected lowercase hex
// value. The comparison runs in constant time.
func VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if strings.TrimSpace(secret) == "" || gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}

	expected := ExpectedSignature(gatewayOrderID, gatewayPaymentID, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func computeHMACSHA256(message, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
