package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etotom/safarov-shop/internal/models"
)

func addressInput(street string, isDefault bool) AddressInput {
	return AddressInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Street:    street,
		City:      "Springfield",
		ZipCode:   "12345",
		Country:   "US",
		IsDefault: isDefault,
	}
}

func defaults(addrs []models.Address) []string {
	var out []string
	for _, a := range addrs {
		if a.IsDefault {
			out = append(out, a.Street)
		}
	}
	return out
}

func TestAddressDefaultIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "jane@example.com")
	other := mustUser(t, s, "other@example.com")

	_, err := s.CreateAddress(ctx, other.ID, addressInput("Elsewhere 1", true))
	require.NoError(t, err)

	_, err = s.CreateAddress(ctx, u.ID, addressInput("First St 1", true))
	require.NoError(t, err)
	second, err := s.CreateAddress(ctx, u.ID, addressInput("Second St 2", true))
	require.NoError(t, err)
	third, err := s.CreateAddress(ctx, u.ID, addressInput("Third St 3", false))
	require.NoError(t, err)

	addrs, err := s.ListAddresses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	assert.Equal(t, []string{"Second St 2"}, defaults(addrs))
	assert.Equal(t, second.ID, addrs[0].ID)

	_, err = s.UpdateAddress(ctx, u.ID, third.ID, AddressPatch{IsDefault: ptr(true)})
	require.NoError(t, err)

	addrs, err = s.ListAddresses(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Third St 3"}, defaults(addrs))

	otherAddrs, err := s.ListAddresses(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elsewhere 1"}, defaults(otherAddrs))
}

func TestAddressDefaultUnderConcurrency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "jane@example.com")

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.CreateAddress(ctx, u.ID, addressInput("Race St", true))
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	addrs, err := s.ListAddresses(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, addrs, n)
	assert.Len(t, defaults(addrs), 1)
}

func TestUpdateAddressOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "jane@example.com")
	intruder := mustUser(t, s, "intruder@example.com")

	addr, err := s.CreateAddress(ctx, u.ID, addressInput("Main St 1", false))
	require.NoError(t, err)

	_, err = s.UpdateAddress(ctx, intruder.ID, addr.ID, AddressPatch{City: ptr("Gotham")})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, s.DeleteAddress(ctx, intruder.ID, addr.ID), ErrForbidden)

	_, err = s.UpdateAddress(ctx, u.ID, "addr_missing", AddressPatch{City: ptr("Gotham")})
	assert.ErrorIs(t, err, ErrAddressNotFound)

	updated, err := s.UpdateAddress(ctx, u.ID, addr.ID, AddressPatch{City: ptr("Gotham")})
	require.NoError(t, err)
	assert.Equal(t, "Gotham", updated.City)
	assert.Equal(t, addr.Street, updated.Street)
	assert.False(t, updated.IsDefault)

	require.NoError(t, s.DeleteAddress(ctx, u.ID, addr.ID))
	assert.ErrorIs(t, s.DeleteAddress(ctx, u.ID, addr.ID), ErrAddressNotFound)
}

func TestCreateAddressValidation(t *testing.T) {
	s := newTestStore(t)
	u := mustUser(t, s, "jane@example.com")

	in := addressInput("", false)
	in.City = ""
	_, err := s.CreateAddress(context.Background(), u.ID, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorContains(t, err, "street, city")
}
