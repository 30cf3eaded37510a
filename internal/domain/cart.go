package domain

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	SellerID  string          `json:"seller_id"`
	Image     string          `json:"image,omitempty"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the client-local order draft. Total is derived from Lines and is
// recomputed by every mutating method.
type Cart struct {
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func NewCart(lines []CartLine) *Cart {
	c := &Cart{}
	for _, l := range lines {
		c.Add(l)
	}
	return c
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// ItemCount is the sum of line quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Add merges by product id. A merged line takes the newer unit price and
// display fields, so the whole line is charged at the latest quote.
// Non-positive quantities are ignored.
func (c *Cart) Add(line CartLine) {
	if line.Quantity < 1 || line.ProductID == "" {
		return
	}
	if i := c.index(line.ProductID); i >= 0 {
		line.Quantity += c.Lines[i].Quantity
		c.Lines[i] = line
	} else {
		c.Lines = append(c.Lines, line)
	}
	c.recompute()
}

// SetQuantity replaces the quantity of an existing line; n < 1 removes it.
func (c *Cart) SetQuantity(productID string, n int) {
	if n < 1 {
		c.Remove(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.Lines[i].Quantity = n
		c.recompute()
	}
}

func (c *Cart) Remove(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.recompute()
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.recompute()
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	out := &Cart{Total: c.Total}
	if c.Lines != nil {
		out.Lines = make([]CartLine, len(c.Lines))
		copy(out.Lines, c.Lines)
	}
	return out
}

func (c *Cart) index(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	c.Total = total
}
