package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

type AddressInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

type AddressPatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Street    *string `json:"street"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	ZipCode   *string `json:"zipCode"`
	Country   *string `json:"country"`
	Phone     *string `json:"phone"`
	IsDefault *bool   `json:"isDefault"`
}

type addressEditor = docstore.Editor[models.Address, *models.Address]

func (in AddressInput) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
		{"street", in.Street},
		{"city", in.City},
		{"zipCode", in.ZipCode},
		{"country", in.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// clearDefaults unsets isDefault on every address of userID except keepID.
func clearDefaults(ed *addressEditor, userID, keepID string) error {
	_, err := ed.PatchWhere([]docstore.Cond{
		docstore.Eq("userId", userID),
		docstore.Eq("isDefault", true),
		docstore.Not("id", keepID),
	}, func(a *models.Address) { a.IsDefault = false })
	return err
}

// ListAddresses returns the user's addresses, the default one first and the
// rest newest first.
func (s *Store) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	addrs, err := s.Addresses.FindMany(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("userId", userID)},
		OrderBy: docstore.Desc("createdAt"),
	})
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	out := make([]models.Address, 0, len(addrs))
	for _, a := range addrs {
		if a.IsDefault {
			out = append(out, a)
		}
	}
	for _, a := range addrs {
		if !a.IsDefault {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateAddress stores a new address for userID. When it is the default, every
// other address of the user stops being default in the same write.
func (s *Store) CreateAddress(ctx context.Context, userID string, in AddressInput) (*models.Address, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created models.Address
	err := s.Addresses.Mutate(ctx, func(ed *addressEditor) error {
		if in.IsDefault {
			if err := clearDefaults(ed, userID, ""); err != nil {
				return err
			}
		}
		created = ed.Insert(models.Address{
			UserID:    userID,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Street:    in.Street,
			City:      in.City,
			State:     in.State,
			ZipCode:   in.ZipCode,
			Country:   in.Country,
			Phone:     in.Phone,
			IsDefault: in.IsDefault,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return &created, nil
}

func ownedAddress(ed *addressEditor, userID, id string) error {
	addr, err := ed.First(docstore.Eq("id", id))
	if err != nil {
		return err
	}
	if addr == nil {
		return ErrAddressNotFound
	}
	if addr.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Store) GetAddress(ctx context.Context, userID, id string) (*models.Address, error) {
	addr, err := s.Addresses.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if addr == nil {
		return nil, ErrAddressNotFound
	}
	if addr.UserID != userID {
		return nil, ErrForbidden
	}
	return addr, nil
}

func (s *Store) UpdateAddress(ctx context.Context, userID, id string, patch AddressPatch) (*models.Address, error) {
	var updated models.Address
	err := s.Addresses.Mutate(ctx, func(ed *addressEditor) error {
		if err := ownedAddress(ed, userID, id); err != nil {
			return err
		}
		if patch.IsDefault != nil && *patch.IsDefault {
			if err := clearDefaults(ed, userID, id); err != nil {
				return err
			}
		}

		var err error
		updated, err = ed.Patch(id, func(a *models.Address) {
			setString(&a.FirstName, patch.FirstName)
			setString(&a.LastName, patch.LastName)
			setString(&a.Street, patch.Street)
			setString(&a.City, patch.City)
			setString(&a.State, patch.State)
			setString(&a.ZipCode, patch.ZipCode)
			setString(&a.Country, patch.Country)
			setString(&a.Phone, patch.Phone)
			if patch.IsDefault != nil {
				a.IsDefault = *patch.IsDefault
			}
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}
	return &updated, nil
}

func (s *Store) DeleteAddress(ctx context.Context, userID, id string) error {
	err := s.Addresses.Mutate(ctx, func(ed *addressEditor) error {
		if err := ownedAddress(ed, userID, id); err != nil {
			return err
		}
		ed.Remove(id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
