package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/params"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// ConsolePrompter asks on a terminal. A non-empty passphrase answers the
// unlock prompt without asking.
type ConsolePrompter struct {
	in         io.Reader
	out        io.Writer
	passphrase string

	mu    sync.Mutex
	once  sync.Once
	lines chan string
}

func NewConsolePrompter(in io.Reader, out io.Writer, passphrase string) *ConsolePrompter {
	return &ConsolePrompter{
		in:         in,
		out:        out,
		passphrase: passphrase,
		lines:      make(chan string),
	}
}

func (c *ConsolePrompter) Passphrase(ctx context.Context, account accounts.Account) (string, error) {
	if c.passphrase != "" {
		return c.passphrase, nil
	}
	line, err := c.ask(ctx, fmt.Sprintf("Unlock %s, passphrase (empty to cancel): ", account.Address.Hex()))
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", domain.ErrUserRejected
	}
	return line, nil
}

func (c *ConsolePrompter) ConfirmTransaction(ctx context.Context, req TxRequest) (bool, error) {
	value := decimal.NewFromBigInt(req.Value, 0).Div(decimal.NewFromInt(params.Ether))
	fee := decimal.NewFromBigInt(req.MaxFee, 0).Div(decimal.NewFromInt(params.Ether))
	prompt := fmt.Sprintf("Send %s to %s on chain %s\n  value: %s ETH, max fee: %s ETH\nApprove? [y/N]: ",
		req.Function, req.To.Hex(), req.ChainID, value.String(), fee.String())

	line, err := c.ask(ctx, prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *ConsolePrompter) ask(ctx context.Context, prompt string) (string, error) {
	c.once.Do(func() { go c.scan() })

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprint(c.out, prompt); err != nil {
		return "", err
	}

	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", fmt.Errorf("read answer: %w", io.EOF)
		}
		return strings.TrimSpace(line), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// scan owns the input; a line typed after a cancelled prompt answers the next one.
func (c *ConsolePrompter) scan() {
	defer close(c.lines)
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}
