package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/memstore"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/payment"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store    *memstore.Store
	carts    *cart.Service
	svc      *orders.Service
	gw       *payment.Simulated
	events   *events.Recorder
	customer string
	farmerA  string
	farmerB  string
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  memstore.New(),
		gw:     &payment.Simulated{Outcome: payment.Authorized},
		events: &events.Recorder{},
		clock:  time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	users := &accounts.Service{Repo: f.store, Now: now}
	register := func(email string, role accounts.Role) string {
		in := accounts.RegisterInput{Name: email, Email: email, Phone: "+373", Role: role, Location: "Moldova"}
		if role == accounts.RoleFarmer {
			in.FarmName = email
		}
		u, _, err := users.Register(ctx, in)
		require.NoError(t, err)
		return u.ID
	}
	f.customer = register("chef@villamia.md", accounts.RoleRestaurant)
	f.farmerA = register("a@farm.md", accounts.RoleFarmer)
	f.farmerB = register("b@farm.md", accounts.RoleFarmer)

	for _, p := range []catalog.Product{
		{ID: "tomatoes", Name: "Organic Tomatoes", FarmerID: f.farmerA, Price: dec("25"), Unit: "kg"},
		{ID: "cucumbers", Name: "Fresh Cucumbers", FarmerID: f.farmerA, Price: dec("18"), Unit: "kg"},
		{ID: "peppers", Name: "Sweet Bell Peppers", FarmerID: f.farmerB, Price: dec("35"), Unit: "kg"},
	} {
		p.MinimumOrder = dec("1")
		p.AvailableQuantity = dec("100")
		p.IsAvailable = true
		p.DeliveryOptions = []catalog.DeliveryOption{catalog.DeliveryPickup, catalog.DeliveryLocal}
		require.NoError(t, f.store.CreateProduct(ctx, p, nil))
	}

	f.carts = &cart.Service{Repo: f.store, Products: f.store, Now: now}
	f.svc = &orders.Service{
		Repo:     f.store,
		Carts:    f.store,
		Products: f.store,
		Users:    f.store,
		Payments: f.gw,
		Merchant: payment.Merchant{ID: "merchant.test", Currency: "USD", CountryCode: "US"},
		Events:   f.events,
		Producer: "test",
		Now:      now,
	}
	return f
}

func (f *fixture) add(t *testing.T, productID, qty string) {
	t.Helper()
	_, err := f.carts.Add(context.Background(), f.customer, cart.AddInput{
		ProductID: productID, Quantity: dec(qty), DeliveryOption: catalog.DeliveryPickup,
	})
	require.NoError(t, err)
}

func pickup() orders.CheckoutInput {
	return orders.CheckoutInput{DeliveryOption: catalog.DeliveryPickup}
}

func TestCheckout_SplitsPerFarmer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "tomatoes", "2")
	f.add(t, "peppers", "1")
	f.add(t, "cucumbers", "3")

	placed, err := f.svc.Checkout(ctx, f.customer, pickup())
	require.NoError(t, err)
	require.Len(t, placed, 2)

	byFarmer := map[string]orders.Order{}
	total := decimal.Zero
	for _, o := range placed {
		byFarmer[o.FarmerID] = o
		total = total.Add(o.TotalAmount)
		assert.Equal(t, orders.StatusPending, o.Status)
		assert.Equal(t, orders.PaymentPaid, o.PaymentStatus)
		require.NotNil(t, o.DeliveryDate)
		assert.Equal(t, o.CreatedAt.Add(orders.DeliveryLeadTime), *o.DeliveryDate)
	}
	assert.Len(t, byFarmer[f.farmerA].Items, 2)
	assert.Equal(t, "104", byFarmer[f.farmerA].TotalAmount.String())
	assert.Len(t, byFarmer[f.farmerB].Items, 1)
	assert.Equal(t, "35", byFarmer[f.farmerB].TotalAmount.String())

	require.Len(t, f.gw.Requests(), 1, "one payment for the whole cart")
	assert.True(t, total.Equal(f.gw.Requests()[0].Total()))
	assert.Equal(t, "Organic Tomatoes (2 kg)", f.gw.Requests()[0].Items[0].Label)

	lines, err := f.carts.List(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, lines, "cart cleared")
	assert.Len(t, f.events.OfType(events.TypeOrderCreated), 2)
}

func TestCheckout_PaymentNotAuthorized(t *testing.T) {
	for _, tc := range []struct {
		outcome payment.Outcome
		want    error
	}{
		{payment.Declined, payment.ErrDeclined},
		{payment.Cancelled, payment.ErrCancelled},
	} {
		t.Run(string(tc.outcome), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.add(t, "tomatoes", "2")
			f.gw.Outcome = tc.outcome

			_, err := f.svc.Checkout(ctx, f.customer, pickup())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.Equal(t, apperr.KindPayment, apperr.KindOf(err))

			lines, err := f.carts.List(ctx, f.customer)
			require.NoError(t, err)
			assert.Len(t, lines, 1, "cart untouched")
			mine, err := f.svc.List(ctx, f.customer, orders.TabAll)
			require.NoError(t, err)
			assert.Empty(t, mine)
			assert.Empty(t, f.events.All())
		})
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.customer, pickup())
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
	assert.Empty(t, f.gw.Requests())
}

func TestCheckout_DeliveryNeedsAddress(t *testing.T) {
	f := newFixture(t)
	f.add(t, "tomatoes", "2")
	_, err := f.svc.Checkout(context.Background(), f.customer, orders.CheckoutInput{DeliveryOption: catalog.DeliveryLocal})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestCheckout_RechecksStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "tomatoes", "2")
	_, err := f.store.DecrementStock(ctx, "tomatoes", dec("99"), f.clock)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, f.customer, pickup())
	assert.ErrorIs(t, err, catalog.ErrExceedsAvailable)
	assert.Empty(t, f.gw.Requests(), "no payment requested")
}

func TestCheckout_SumsLinesOfSameProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.DecrementStock(ctx, "tomatoes", dec("90"), f.clock)
	require.NoError(t, err)

	// 6 kg for pickup and 6 kg for delivery: each fits the 10 kg left, together they do not
	f.add(t, "tomatoes", "6")
	_, err = f.carts.Add(ctx, f.customer, cart.AddInput{
		ProductID: "tomatoes", Quantity: dec("6"), DeliveryOption: catalog.DeliveryLocal,
	})
	require.NoError(t, err)
	lines, err := f.carts.List(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	_, err = f.svc.Checkout(ctx, f.customer, pickup())
	assert.ErrorIs(t, err, catalog.ErrExceedsAvailable)
	assert.Empty(t, f.gw.Requests(), "no payment when stock is short")

	lines, err = f.carts.List(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, lines, 2, "cart untouched")
}

func TestCheckout_StoreFailureLeavesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "tomatoes", "2")
	f.store.FailWrites = func(op string) error {
		if op == "PlaceOrders" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.svc.Checkout(ctx, f.customer, pickup())
	require.Error(t, err)
	f.store.FailWrites = nil

	lines, err := f.carts.List(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestBuyNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "cucumbers", "1")

	o, err := f.svc.BuyNow(ctx, f.customer, orders.BuyNowInput{
		ProductID: "peppers", Quantity: dec("2"), DeliveryOption: catalog.DeliveryLocal, DeliveryAddress: "Str. Puskin 1",
	})
	require.NoError(t, err)
	assert.Equal(t, f.farmerB, o.FarmerID)
	assert.Equal(t, "70", o.TotalAmount.String())
	assert.Equal(t, "Str. Puskin 1", o.DeliveryAddress)

	lines, err := f.carts.List(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, lines, 1, "cart is not touched")

	_, err = f.svc.BuyNow(ctx, f.farmerB, orders.BuyNowInput{ProductID: "peppers", Quantity: dec("1"), DeliveryOption: catalog.DeliveryPickup})
	assert.ErrorIs(t, err, catalog.ErrOwnProduct)
}

func (f *fixture) placeOne(t *testing.T) orders.Order {
	t.Helper()
	o, err := f.svc.BuyNow(context.Background(), f.customer, orders.BuyNowInput{
		ProductID: "tomatoes", Quantity: dec("1"), DeliveryOption: catalog.DeliveryPickup,
	})
	require.NoError(t, err)
	return o
}

func TestUpdateStatus_FarmerWalksLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOne(t)

	for _, to := range []orders.Status{
		orders.StatusConfirmed, orders.StatusPreparing, orders.StatusReady,
		orders.StatusDelivered, orders.StatusCompleted,
	} {
		got, err := f.svc.UpdateStatus(ctx, o.ID, f.farmerA, to)
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, got.Status)
	}
	changed := f.events.OfType(events.TypeOrderStatusChanged)
	require.Len(t, changed, 5)
	assert.Equal(t, o.ID, changed[0].Key)
}

func TestUpdateStatus_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOne(t)

	_, err := f.svc.UpdateStatus(ctx, o.ID, f.farmerA, orders.StatusReady)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, o.ID, f.customer, orders.StatusConfirmed)
	assert.ErrorIs(t, err, orders.ErrNotAuthorized)

	_, err = f.svc.UpdateStatus(ctx, o.ID, f.farmerB, orders.StatusConfirmed)
	assert.ErrorIs(t, err, orders.ErrNotParticipant)

	_, err = f.svc.UpdateStatus(ctx, o.ID, f.farmerA, "shipped")
	assert.ErrorIs(t, err, orders.ErrUnknownStatus)

	_, err = f.svc.UpdateStatus(ctx, o.ID, f.farmerA, orders.StatusConfirmed)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, o.ID, f.customer, orders.StatusCancelled)
	assert.ErrorIs(t, err, orders.ErrNotAuthorized, "customer cancels only while pending")
}

func TestUpdateStatus_CustomerCancelsPending(t *testing.T) {
	f := newFixture(t)
	o := f.placeOne(t)
	got, err := f.svc.UpdateStatus(context.Background(), o.ID, f.customer, orders.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
}

func TestGet_OnlyParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOne(t)

	_, err := f.svc.Get(ctx, o.ID, f.customer)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, o.ID, f.farmerA)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, o.ID, f.farmerB)
	assert.True(t, apperr.IsNotFound(err))
}

func TestList_Tabs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.placeOne(t)
	second := f.placeOne(t)
	third := f.placeOne(t)
	_, err := f.svc.UpdateStatus(ctx, second.ID, f.customer, orders.StatusCancelled)
	require.NoError(t, err)
	for _, to := range []orders.Status{orders.StatusConfirmed, orders.StatusPreparing, orders.StatusReady, orders.StatusDelivered} {
		_, err := f.svc.UpdateStatus(ctx, third.ID, f.farmerA, to)
		require.NoError(t, err)
	}

	ids := func(os []orders.Order) []string {
		out := make([]string, 0, len(os))
		for _, o := range os {
			out = append(out, o.ID)
		}
		return out
	}
	all, err := f.svc.List(ctx, f.customer, orders.TabAll)
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(all), "newest first")

	active, err := f.svc.List(ctx, f.customer, orders.TabActive)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, ids(active))

	done, err := f.svc.List(ctx, f.farmerA, orders.TabCompleted)
	require.NoError(t, err)
	assert.Equal(t, []string{third.ID}, ids(done), "farmers see orders placed with them")

	cancelled, err := f.svc.List(ctx, f.customer, orders.TabCancelled)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids(cancelled))

	none, err := f.svc.List(ctx, f.farmerB, orders.TabAll)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOne(t)

	_, err := f.svc.Rate(ctx, o.ID, f.customer, orders.RateInput{Rating: 4})
	assert.ErrorIs(t, err, orders.ErrNotRateable)

	for _, to := range []orders.Status{orders.StatusConfirmed, orders.StatusPreparing, orders.StatusReady, orders.StatusDelivered} {
		_, err := f.svc.UpdateStatus(ctx, o.ID, f.farmerA, to)
		require.NoError(t, err)
	}
	_, err = f.svc.Rate(ctx, o.ID, f.farmerA, orders.RateInput{Rating: 5})
	assert.ErrorIs(t, err, orders.ErrNotAuthorized)
	_, err = f.svc.Rate(ctx, o.ID, f.customer, orders.RateInput{Rating: 6})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	rated, err := f.svc.Rate(ctx, o.ID, f.customer, orders.RateInput{Rating: 4, Review: "Great tomatoes"})
	require.NoError(t, err)
	require.NotNil(t, rated.CustomerRating)
	assert.Equal(t, 4.0, *rated.CustomerRating)

	_, err = f.svc.Rate(ctx, o.ID, f.customer, orders.RateInput{Rating: 3})
	assert.ErrorIs(t, err, orders.ErrAlreadyRated)

	farmer, err := f.store.GetUser(ctx, f.farmerA)
	require.NoError(t, err)
	assert.Equal(t, 4.0, farmer.Rating)
	assert.Equal(t, 1, farmer.TotalReviews)
}
