package utils

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	OrderIDPrefix       = "ORD"
	ProjectNumberPrefix = "CARR"
	VendorCodePrefix    = "VEN"
)

// IDGenerator produces the human-readable order identifiers
type IDGenerator interface {
	OrderID(now time.Time) string
	ProjectNumber() string
}

type randomIDGenerator struct{}

// DefaultIDGenerator derives identifiers from the current date and random UUID hex
var DefaultIDGenerator IDGenerator = randomIDGenerator{}

func (randomIDGenerator) OrderID(now time.Time) string {
	return NewOrderID(now)
}

func (randomIDGenerator) ProjectNumber() string {
	return NewProjectNumber()
}

// NewOrderID returns ORD + YYYYMMDD + 8 uppercase hex characters
func NewOrderID(now time.Time) string {
	return OrderIDPrefix + now.Format("20060102") + randomHex(8)
}

// NewProjectNumber returns CARR + 6 uppercase hex characters
func NewProjectNumber() string {
	return ProjectNumberPrefix + randomHex(6)
}

// randomHex returns n uppercase hex characters taken from a random UUID (n <= 32)
func randomHex(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:n])
}

// NextVendorCode increments the trailing number of the most recent vendor code.
// An empty code starts the sequence at VEN001.
func NextVendorCode(last string) (string, error) {
	if last == "" {
		return formatVendorCode(1), nil
	}

	i := len(last)
	for i > 0 && last[i-1] >= '0' && last[i-1] <= '9' {
		i--
	}
	if i == len(last) {
		return "", fmt.Errorf("vendor code %q has no trailing number", last)
	}

	n, err := strconv.Atoi(last[i:])
	if err != nil {
		return "", fmt.Errorf("vendor code %q: %w", last, err)
	}
	return formatVendorCode(n + 1), nil
}

func formatVendorCode(n int) string {
	return fmt.Sprintf("%s%03d", VendorCodePrefix, n)
}

// NewUploadToken returns 8 lowercase hex characters that keep attachment keys distinct
func NewUploadToken() string {
	return strings.ToLower(randomHex(8))
}

// OrderFileKey builds the storage key for an order attachment:
// order_files/YYYY/MM/DD/<token>/<Customer>_<OrderID>_<filename>
// Two uploads of the same filename on the same day differ only by token.
func OrderFileKey(customerName, orderID, token, filename string, now time.Time) string {
	return fmt.Sprintf("order_files/%s/%s/%s_%s_%s",
		now.Format("2006/01/02"),
		token,
		cleanCustomerName(customerName),
		orderID,
		filepath.Base(filename))
}

func cleanCustomerName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if cleaned == "" {
		return "Anonymous"
	}
	return cleaned
}
