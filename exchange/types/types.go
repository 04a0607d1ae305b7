package types

// Side represents order side
type Side int

const (
	SideUnspecified Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unspecified"
	}
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// ParseSide parses the wire representation of a side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	default:
		return SideUnspecified, false
	}
}

// ExecutionType controls what happens to the unmatched remainder of an order.
type ExecutionType int

const (
	ExecGTC ExecutionType = iota // rest on the book
	ExecIOC                      // match now, cancel residual
	ExecFOK                      // full fill or no trades at all
)

func (t ExecutionType) String() string {
	switch t {
	case ExecIOC:
		return "IOC"
	case ExecFOK:
		return "FOK"
	default:
		return "GTC"
	}
}

// ParseExecutionType parses the wire representation; the empty string
// defaults to GTC.
func ParseExecutionType(s string) (ExecutionType, bool) {
	switch s {
	case "", "GTC":
		return ExecGTC, true
	case "IOC":
		return ExecIOC, true
	case "FOK":
		return ExecFOK, true
	default:
		return ExecGTC, false
	}
}

// OrderStatus represents order status
type OrderStatus int

const (
	OrderStatusActive OrderStatus = iota
	OrderStatusFilled
	OrderStatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "ACTIVE"
	}
}

const (
	// HourMs is the required width of a delivery window.
	HourMs = int64(3_600_000)

	// Trading window bounds relative to delivery start: orders may be
	// placed from 15 days before until 60 seconds before delivery.
	WindowOpenBeforeMs  = int64(15 * 86_400_000)
	WindowCloseBeforeMs = int64(60_000)
)

// Contract identifies a one-hour delivery window in Unix-ms.
type Contract struct {
	DeliveryStart int64 `json:"delivery_start"`
	DeliveryEnd   int64 `json:"delivery_end"`
}

// Valid reports whether both bounds are hour-aligned and exactly one
// hour apart.
func (c Contract) Valid() bool {
	if c.DeliveryStart%HourMs != 0 || c.DeliveryEnd%HourMs != 0 {
		return false
	}
	return c.DeliveryEnd-c.DeliveryStart == HourMs
}

// WindowState classifies now against the contract's trading window.
type WindowState int

const (
	WindowOpen WindowState = iota
	WindowNotYetOpen
	WindowClosed
)

// Window returns where now falls relative to the trading window
// [delivery_start - 15d, delivery_start - 60s].
func (c Contract) Window(now int64) WindowState {
	if now < c.DeliveryStart-WindowOpenBeforeMs {
		return WindowNotYetOpen
	}
	if now > c.DeliveryStart-WindowCloseBeforeMs {
		return WindowClosed
	}
	return WindowOpen
}

// Order is a V2 limit order. Quantity is the remaining unfilled amount;
// OriginalQuantity is rebased on modify-increase and feeds execution
// reports only.
type Order struct {
	OrderID          string      `json:"order_id"`
	Owner            string      `json:"owner"`
	Side             Side        `json:"side"`
	Price            int64       `json:"price"`
	Quantity         int64       `json:"quantity"`
	OriginalQuantity int64       `json:"original_quantity"`
	Status           OrderStatus `json:"status"`
	Contract         Contract    `json:"contract"`
	CreatedAt        int64       `json:"created_at"`
}

// FilledQuantity returns how much of the order has executed so far.
func (o *Order) FilledQuantity() int64 {
	return o.OriginalQuantity - o.Quantity
}

// IsActive returns true if the order can still be matched.
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusActive
}

// Fill reduces the remaining quantity and flips the order to FILLED when
// it reaches zero.
func (o *Order) Fill(qty int64) {
	o.Quantity -= qty
	if o.Quantity <= 0 {
		o.Quantity = 0
		o.Status = OrderStatusFilled
	}
}

// Cancel terminates the order. Terminal orders always carry quantity 0.
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
	o.Quantity = 0
}

// SignedCommitment is the effect on the owner's balance if the remaining
// quantity fills: buys pay, sells receive.
func (o *Order) SignedCommitment() int64 {
	if o.Side == SideBuy {
		return -o.Price * o.Quantity
	}
	return o.Price * o.Quantity
}

// Crosses reports whether an incoming order at price would trade against
// a resting order at restingPrice.
func Crosses(side Side, price, restingPrice int64) bool {
	if side == SideBuy {
		return price >= restingPrice
	}
	return price <= restingPrice
}

// Trade sources.
const (
	TradeSourceV1 = "v1"
	TradeSourceV2 = "v2"
)

// Trade is an immutable record of one execution.
type Trade struct {
	TradeID       string `json:"trade_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	Price         int64  `json:"price"`
	Quantity      int64  `json:"quantity"`
	Timestamp     int64  `json:"timestamp"`
	DeliveryStart int64  `json:"delivery_start"`
	DeliveryEnd   int64  `json:"delivery_end"`
	Source        string `json:"source"`
}

// V1Order is a legacy flat listing: sell-only, taken in full by id.
// V1 state is intentionally not durable.
type V1Order struct {
	OrderID  string `json:"order_id"`
	Owner    string `json:"owner"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Active   bool   `json:"active"`
}
