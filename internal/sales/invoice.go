package sales

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const defaultShopCode = "SHOP"

// InvoiceNumber formats {shopCode}{YYYYMMDD}{suffix}. Uniqueness is probabilistic.
func InvoiceNumber(shopCode string, at time.Time, suffix int) string {
	code := strings.ToUpper(strings.TrimSpace(shopCode))
	if code == "" {
		code = defaultShopCode
	}
	return fmt.Sprintf("%s%s%04d", code, at.Format("20060102"), suffix)
}

func randomSuffix() int {
	return 1000 + rand.Intn(9000)
}
