// Package receipt writes markdown order receipts with YAML front-matter.
package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/redaction"
)

// Header is the YAML front-matter of a receipt.
type Header struct {
	Submission string    `yaml:"submission"`
	Orders     []string  `yaml:"orders"`
	Guest      string    `yaml:"guest"`
	Email      string    `yaml:"email"`
	Phone      string    `yaml:"phone"`
	Items      int       `yaml:"items"`
	Total      string    `yaml:"total"`
	Created    time.Time `yaml:"created"`
}

// Render produces the full receipt document. Contact details are masked and
// notes pass through redaction with the optional extra patterns.
func Render(rec *models.OrderRecord, req *models.GuestOrderRequest, cart *models.Cart, extra []*regexp.Regexp) (string, error) {
	hdr := Header{
		Submission: rec.SubmissionID,
		Orders:     rec.OrderIDs,
		Guest:      req.GuestName,
		Email:      redaction.MaskEmail(req.GuestEmail),
		Phone:      redaction.MaskPhone(req.Phone),
		Items:      rec.ItemCount,
		Total:      rec.TotalAmount.StringFixed(2),
		Created:    rec.CreatedAt.UTC(),
	}
	if hdr.Orders == nil {
		hdr.Orders = make([]string, 0)
	}
	fm, err := yaml.Marshal(&hdr)
	if err != nil {
		return "", fmt.Errorf("receipt.Render: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fm)
	sb.WriteString("---\n\n")
	sb.WriteString("# Order confirmation\n\n")
	sb.WriteString(rec.Message)
	sb.WriteString("\n\n**Order:** ")
	sb.WriteString((&models.OrderResult{OrderIDs: rec.OrderIDs}).FirstOrderID())
	sb.WriteString("\n\n## Items\n\n")
	sb.WriteString("| Product | Qty | Price | Subtotal |\n")
	sb.WriteString("|---|---:|---:|---:|\n")
	if cart != nil {
		for _, l := range cart.Items {
			fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n",
				escapeCell(l.Product.Name), l.Quantity,
				l.Product.Price.StringFixed(2), l.Subtotal.StringFixed(2))
		}
	}
	fmt.Fprintf(&sb, "\n**Total:** %s (%d items)\n", rec.TotalAmount.StringFixed(2), rec.ItemCount)

	sb.WriteString("\n## Delivery\n\n")
	sb.WriteString(redaction.MaskAddress(req.ShippingAddress))
	sb.WriteString("\n\nPayment: cash on delivery\n")
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		sb.WriteString("\n**Notes:** ")
		sb.WriteString(redaction.Redact(notes, extra))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Write renders the receipt into dir and returns the file path. The file is
// named <date>-<first 8 chars of the submission id>.md.
func Write(dir string, rec *models.OrderRecord, req *models.GuestOrderRequest, cart *models.Cart, extra []*regexp.Regexp) (string, error) {
	content, err := Render(rec, req, cart, extra)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("receipt.Write mkdir: %w", err)
	}
	id := rec.SubmissionID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(dir, rec.CreatedAt.UTC().Format("2006-01-02")+"-"+id+".md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("receipt.Write: %w", err)
	}
	return path, nil
}

// Read parses a receipt file back into its header and markdown body.
func Read(path string) (*Header, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	fm, body := splitFrontmatter(string(data))
	if fm == "" {
		return nil, "", fmt.Errorf("receipt.Read: %s has no front-matter", path)
	}
	var hdr Header
	if err := yaml.Unmarshal([]byte(fm), &hdr); err != nil {
		return nil, "", fmt.Errorf("receipt.Read: %w", err)
	}
	return &hdr, strings.TrimLeft(body, "\n"), nil
}

// splitFrontmatter splits YAML front-matter from the body.
// Returns ("", content) when no front-matter is detected.
func splitFrontmatter(content string) (frontmatter, body string) {
	parts := strings.SplitN(content, "---\n", 3)
	if len(parts) >= 3 && parts[0] == "" {
		return parts[1], parts[2]
	}
	return "", content
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
