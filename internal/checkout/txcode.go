package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTransactionCode returns TRX-YYYYMMDD-XXXX with four random uppercase hex
// digits. Collisions are possible; the unique index on orders reports them.
func NewTransactionCode(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "TRX-" + t.Format("20060102") + "-" + suffix
}
