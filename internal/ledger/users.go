package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

const (
	userBatchSize = 10
	maxUsers      = 500
)

// rawUser mirrors the user tuple returned by the user contract.
type rawUser struct {
	UserId             *big.Int
	FirstName          string
	LastName           string
	Account            common.Address
	Role               uint8
	VerificationStatus uint8
}

var roles = map[uint8]domain.Role{
	0: domain.RoleBuyer,
	1: domain.RoleSeller,
	2: domain.RoleAdmin,
}

// decodeUser validates a raw record. ok is false for the zero entry of an
// unregistered account.
func decodeUser(r rawUser) (u domain.User, ok bool, err error) {
	if r.UserId == nil || r.UserId.Sign() == 0 {
		return domain.User{}, false, nil
	}
	id := r.UserId.String()

	role, known := roles[r.Role]
	if !known {
		return domain.User{}, false, fmt.Errorf("user %s: unknown role %d", id, r.Role)
	}
	if r.Account == (common.Address{}) {
		return domain.User{}, false, fmt.Errorf("user %s: missing account", id)
	}

	return domain.User{
		UserID:    id,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Account:   r.Account.Hex(),
		Role:      role,
		Verified:  r.VerificationStatus != 0,
	}, true, nil
}

// UserData reads the registration of account. An unregistered account yields
// domain.ErrNotFound.
func (c *Client) UserData(ctx context.Context, account common.Address) (domain.User, error) {
	out, err := c.call(ctx, c.cfg.Contracts.User, c.abis.user, "getUserData", account)
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) {
			return domain.User{}, fmt.Errorf("user %s: %w: %s", account.Hex(), domain.ErrNotFound, remote.Reason)
		}
		return domain.User{}, err
	}

	raw := *abi.ConvertType(out[0], new(rawUser)).(*rawUser)
	u, ok, err := decodeUser(raw)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", account.Hex(), domain.ErrNotFound)
	}
	return u, nil
}

// Users reads the inclusive index range [start, end] of registrations.
func (c *Client) Users(ctx context.Context, start, end uint64) ([]domain.User, error) {
	out, err := c.call(ctx, c.cfg.Contracts.User, c.abis.user, "getUsers",
		new(big.Int).SetUint64(start), new(big.Int).SetUint64(end))
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) && isOutOfBounds(remote.Reason) {
			return nil, fmt.Errorf("%w: [%d, %d]", ErrOutOfBounds, start, end)
		}
		return nil, err
	}

	raws := *abi.ConvertType(out[0], new([]rawUser)).(*[]rawUser)
	users := make([]domain.User, 0, len(raws))
	for _, raw := range raws {
		u, ok, err := decodeUser(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// PendingSellers pages through the registrations and keeps sellers awaiting
// verification. Paging stops at an empty or out-of-bounds page.
func (c *Client) PendingSellers(ctx context.Context) ([]domain.User, error) {
	var pending []domain.User
	for start, seen := uint64(0), 0; seen < maxUsers; start += userBatchSize {
		page, err := c.Users(ctx, start, start+userBatchSize-1)
		if errors.Is(err, ErrOutOfBounds) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		seen += len(page)
		for _, u := range page {
			if u.PendingSeller() {
				pending = append(pending, u)
			}
		}
	}
	slog.DebugContext(ctx, "pending sellers read", "count", len(pending))
	return pending, nil
}

// Register sends the registration of from. The contract assigns the role.
func (c *Client) Register(ctx context.Context, from common.Address, firstName, lastName string) (common.Hash, error) {
	data, err := c.abis.user.Pack("register", lastName, firstName)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack register: %w", err)
	}
	return c.send(ctx, from, c.cfg.Contracts.User, nil, data, "register")
}

// VerifySeller marks account as a verified seller. Only the admin account
// may send it.
func (c *Client) VerifySeller(ctx context.Context, from, account common.Address) (common.Hash, error) {
	data, err := c.abis.user.Pack("verifySeller", account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack verifySeller: %w", err)
	}
	return c.send(ctx, from, c.cfg.Contracts.User, nil, data, "verifySeller")
}

func isOutOfBounds(reason string) bool {
	reason = strings.ToLower(reason)
	return strings.Contains(reason, ErrOutOfBounds.Error()) || strings.Contains(reason, "out of bounds")
}
