package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/hourex/exchange/engine"
	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/exchange/types"
	"github.com/openalpha/hourex/pkg/gbuf"
)

// ---- envelope helpers ----

// readFields decodes the request body envelope.
func readFields(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, types.ErrBadRequest
	}
	fields, err := gbuf.Decode(body)
	if err != nil {
		return nil, types.ErrBadRequest
	}
	return fields, nil
}

// writeFields replies with an encoded envelope. Encoding failures
// degrade to a bare 500.
func (s *Server) writeFields(w http.ResponseWriter, status int, fields map[string]any) {
	body, err := gbuf.Encode(fields)
	if err != nil {
		s.logger.Error("response encoding failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// fail replies with the error's status code and an empty body.
func fail(w http.ResponseWriter, err error) {
	w.WriteHeader(types.HTTPStatus(err))
}

// bearerToken extracts the Authorization bearer token, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// authenticate resolves the request's bearer token to a username.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		return "", types.ErrUnauthorized
	}
	return s.engine.Authenticate(token)
}

// contractFromQuery reads delivery_start/delivery_end query parameters.
func contractFromQuery(r *http.Request) (types.Contract, error) {
	start, err1 := strconv.ParseInt(r.URL.Query().Get("delivery_start"), 10, 64)
	end, err2 := strconv.ParseInt(r.URL.Query().Get("delivery_end"), 10, 64)
	if err1 != nil || err2 != nil {
		return types.Contract{}, types.ErrBadRequest
	}
	return types.Contract{DeliveryStart: start, DeliveryEnd: end}, nil
}

func orderFields(o types.Order) map[string]any {
	return map[string]any{
		"order_id":          o.OrderID,
		"side":              o.Side.String(),
		"price":             o.Price,
		"quantity":          o.Quantity,
		"original_quantity": o.OriginalQuantity,
		"status":            o.Status.String(),
		"delivery_start":    o.Contract.DeliveryStart,
		"delivery_end":      o.Contract.DeliveryEnd,
		"created_at":        o.CreatedAt,
	}
}

func tradeFields(t types.Trade) map[string]any {
	return map[string]any{
		"trade_id":       t.TradeID,
		"buyer_id":       t.BuyerID,
		"seller_id":      t.SellerID,
		"price":          t.Price,
		"quantity":       t.Quantity,
		"timestamp":      t.Timestamp,
		"delivery_start": t.DeliveryStart,
		"delivery_end":   t.DeliveryEnd,
	}
}

// ---- accounts ----

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	username, password := gbuf.Str(fields, "username"), gbuf.Str(fields, "password")
	if username == "" || password == "" {
		fail(w, types.ErrBadRequest)
		return
	}
	if err := s.engine.Register(username, password); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	token, err := s.engine.Login(gbuf.Str(fields, "username"), gbuf.Str(fields, "password"))
	if err != nil {
		fail(w, err)
		return
	}
	s.writeFields(w, http.StatusOK, map[string]any{"token": token})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	username := gbuf.Str(fields, "username")
	oldPassword := gbuf.Str(fields, "old_password")
	newPassword := gbuf.Str(fields, "new_password")
	if username == "" || newPassword == "" {
		fail(w, types.ErrBadRequest)
		return
	}
	if err := s.engine.ChangePassword(username, oldPassword, newPassword); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDNASubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	username := gbuf.Str(fields, "username")
	password := gbuf.Str(fields, "password")
	sample := gbuf.Str(fields, "dna_sample")
	if err := s.engine.SubmitDNA(username, password, sample); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDNALogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	token, err := s.engine.DNALogin(gbuf.Str(fields, "username"), gbuf.Str(fields, "dna_sample"))
	if err != nil {
		fail(w, err)
		return
	}
	s.writeFields(w, http.StatusOK, map[string]any{"token": token})
}

// ---- orders ----

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createOrder(w, r)
	case http.MethodGet:
		s.orderBook(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	user, err := s.authenticate(r)
	if err != nil {
		fail(w, err)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	req, err := orderRequestFromFields(fields)
	if err != nil {
		fail(w, err)
		return
	}
	res, err := s.engine.CreateOrder(user, req)
	if err != nil {
		fail(w, err)
		return
	}
	s.writeFields(w, http.StatusOK, map[string]any{
		"order_id":        res.OrderID,
		"status":          res.Status.String(),
		"filled_quantity": res.FilledQuantity,
	})
}

func orderRequestFromFields(fields map[string]any) (engine.OrderRequest, error) {
	side, ok := types.ParseSide(gbuf.Str(fields, "side"))
	if !ok {
		return engine.OrderRequest{}, types.ErrBadRequest
	}
	price, okPrice := gbuf.Int(fields, "price")
	quantity, okQty := gbuf.Int(fields, "quantity")
	start, okStart := gbuf.Int(fields, "delivery_start")
	end, okEnd := gbuf.Int(fields, "delivery_end")
	if !okPrice || !okQty || !okStart || !okEnd {
		return engine.OrderRequest{}, types.ErrBadRequest
	}
	exec, ok := types.ParseExecutionType(gbuf.Str(fields, "execution_type"))
	if !ok {
		return engine.OrderRequest{}, types.ErrBadRequest
	}
	return engine.OrderRequest{
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Contract: types.Contract{DeliveryStart: start, DeliveryEnd: end},
		Exec:     exec,
	}, nil
}

func (s *Server) orderBook(w http.ResponseWriter, r *http.Request) {
	c, err := contractFromQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	bids, asks, err := s.engine.OrderBook(c)
	if err != nil {
		fail(w, err)
		return
	}
	bidList := make([]any, 0, len(bids))
	for _, o := range bids {
		bidList = append(bidList, orderFields(o))
	}
	askList := make([]any, 0, len(asks))
	for _, o := range asks {
		askList = append(askList, orderFields(o))
	}
	s.writeFields(w, http.StatusOK, map[string]any{"bids": bidList, "asks": askList})
}

func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/v2/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut && r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	user, err := s.authenticate(r)
	if err != nil {
		fail(w, err)
		return
	}
	switch r.Method {
	case http.MethodPut:
		fields, err := readFields(r)
		if err != nil {
			fail(w, err)
			return
		}
		price, okPrice := gbuf.Int(fields, "price")
		quantity, okQty := gbuf.Int(fields, "quantity")
		if !okPrice || !okQty {
			fail(w, types.ErrBadRequest)
			return
		}
		res, err := s.engine.ModifyOrder(user, orderID, price, quantity)
		if err != nil {
			fail(w, err)
			return
		}
		s.writeFields(w, http.StatusOK, map[string]any{
			"order_id":        res.OrderID,
			"status":          res.Status.String(),
			"filled_quantity": res.FilledQuantity,
		})
	case http.MethodDelete:
		if err := s.engine.CancelOrder(user, orderID); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, err := s.authenticate(r)
	if err != nil {
		fail(w, err)
		return
	}
	orders := s.engine.MyOrders(user)
	list := make([]any, 0, len(orders))
	for _, o := range orders {
		list = append(list, orderFields(o))
	}
	s.writeFields(w, http.StatusOK, map[string]any{"orders": list})
}

// ---- trades ----

func (s *Server) handleMyTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, err := s.authenticate(r)
	if err != nil {
		fail(w, err)
		return
	}
	c, err := contractFromQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	trades := s.engine.MyTrades(user, c)
	list := make([]any, 0, len(trades))
	for _, t := range trades {
		list = append(list, map[string]any{
			"trade_id":       t.Trade.TradeID,
			"side":           t.Side.String(),
			"counterparty":   t.Counterparty,
			"price":          t.Trade.Price,
			"quantity":       t.Trade.Quantity,
			"timestamp":      t.Trade.Timestamp,
			"delivery_start": t.Trade.DeliveryStart,
			"delivery_end":   t.Trade.DeliveryEnd,
		})
	}
	s.writeFields(w, http.StatusOK, map[string]any{"trades": list})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	c, err := contractFromQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	trades := s.engine.ContractTrades(c)
	list := make([]any, 0, len(trades))
	for _, t := range trades {
		list = append(list, tradeFields(t))
	}
	s.writeFields(w, http.StatusOK, map[string]any{"trades": list})
}

// ---- balance and collateral ----

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, err := s.authenticate(r)
	if err != nil {
		fail(w, err)
		return
	}
	balance, potential, collateral := s.engine.Balance(user)
	s.writeFields(w, http.StatusOK, map[string]any{
		"balance":           balance,
		"potential_balance": potential,
		"collateral":        collateral,
	})
}

func (s *Server) handleCollateral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	user := strings.TrimPrefix(r.URL.Path, "/collateral/")
	if user == "" || strings.Contains(user, "/") {
		http.NotFound(w, r)
		return
	}
	if bearerToken(r) != AdminToken {
		fail(w, types.ErrUnauthorized)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	limit, ok := gbuf.Int(fields, "collateral")
	if !ok {
		fail(w, types.ErrBadRequest)
		return
	}
	if err := s.engine.SetCollateral(user, limit); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- bulk ----

// The envelope format carries objects as flat records, so the batch is
// transported as one "operations" list where every operation names its
// own contract. Consecutive operations on the same contract form one
// group; request order is preserved.
func (s *Server) handleBulkOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	fields, err := readFields(r)
	if err != nil {
		fail(w, err)
		return
	}
	rawOps, ok := fields["operations"].([]any)
	if !ok || len(rawOps) == 0 {
		fail(w, types.ErrBadRequest)
		return
	}

	var batch []engine.BulkContract
	for _, raw := range rawOps {
		obj, ok := raw.(map[string]any)
		if !ok {
			fail(w, types.ErrBadRequest)
			return
		}
		c, op, err := bulkOpFromFields(obj)
		if err != nil {
			fail(w, err)
			return
		}
		if n := len(batch); n > 0 && batch[n-1].Contract == c {
			batch[n-1].Operations = append(batch[n-1].Operations, op)
		} else {
			batch = append(batch, engine.BulkContract{Contract: c, Operations: []engine.BulkOperation{op}})
		}
	}

	results, err := s.engine.BulkOperations(batch)
	if err != nil {
		fail(w, err)
		return
	}
	list := make([]any, 0, len(results))
	for _, res := range results {
		list = append(list, map[string]any{
			"type":            res.Type,
			"order_id":        res.OrderID,
			"status":          res.Status.String(),
			"filled_quantity": res.FilledQuantity,
		})
	}
	s.writeFields(w, http.StatusOK, map[string]any{"results": list})
}

func bulkOpFromFields(obj map[string]any) (types.Contract, engine.BulkOperation, error) {
	start, okStart := gbuf.Int(obj, "delivery_start")
	end, okEnd := gbuf.Int(obj, "delivery_end")
	if !okStart || !okEnd {
		return types.Contract{}, engine.BulkOperation{}, types.ErrBadRequest
	}
	c := types.Contract{DeliveryStart: start, DeliveryEnd: end}

	op := engine.BulkOperation{
		Type:    gbuf.Str(obj, "type"),
		Token:   gbuf.Str(obj, "participant_token"),
		OrderID: gbuf.Str(obj, "order_id"),
	}
	switch op.Type {
	case engine.BulkOpCreate, engine.BulkOpModify:
		price, okPrice := gbuf.Int(obj, "price")
		quantity, okQty := gbuf.Int(obj, "quantity")
		if !okPrice || !okQty {
			return types.Contract{}, engine.BulkOperation{}, types.ErrBadRequest
		}
		op.Price, op.Quantity = price, quantity
	}
	if op.Type == engine.BulkOpCreate {
		side, ok := types.ParseSide(gbuf.Str(obj, "side"))
		if !ok {
			return types.Contract{}, engine.BulkOperation{}, types.ErrBadRequest
		}
		exec, ok := types.ParseExecutionType(gbuf.Str(obj, "execution_type"))
		if !ok {
			return types.Contract{}, engine.BulkOperation{}, types.ErrBadRequest
		}
		op.Side, op.Exec = side, exec
	}
	return c, op, nil
}

// ---- streams ----

func (s *Server) handleStreamTrades(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, events.TopicTrades, "")
}

func (s *Server) handleStreamOrderBook(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, events.TopicOrderBook, "")
}

// Execution reports are private; the subscriber proves identity with a
// token query parameter before the upgrade.
func (s *Server) handleStreamExecReports(w http.ResponseWriter, r *http.Request) {
	user, err := s.engine.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		fail(w, err)
		return
	}
	s.hub.Serve(w, r, events.TopicExecReports, user)
}

// ---- legacy flat listings ----

func (s *Server) handleV1Orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		user, err := s.authenticate(r)
		if err != nil {
			fail(w, err)
			return
		}
		fields, err := readFields(r)
		if err != nil {
			fail(w, err)
			return
		}
		price, okPrice := gbuf.Int(fields, "price")
		quantity, okQty := gbuf.Int(fields, "quantity")
		if !okPrice || !okQty {
			fail(w, types.ErrBadRequest)
			return
		}
		id, err := s.engine.CreateV1Order(user, price, quantity)
		if err != nil {
			fail(w, err)
			return
		}
		s.writeFields(w, http.StatusOK, map[string]any{"order_id": id})
	case http.MethodGet:
		orders := s.engine.V1Orders()
		list := make([]any, 0, len(orders))
		for _, o := range orders {
			list = append(list, map[string]any{
				"order_id": o.OrderID,
				"owner":    o.Owner,
				"price":    o.Price,
				"quantity": o.Quantity,
			})
		}
		s.writeFields(w, http.StatusOK, map[string]any{"orders": list})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleV1Trades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		user, err := s.authenticate(r)
		if err != nil {
			fail(w, err)
			return
		}
		fields, err := readFields(r)
		if err != nil {
			fail(w, err)
			return
		}
		orderID := gbuf.Str(fields, "order_id")
		if orderID == "" {
			fail(w, types.ErrBadRequest)
			return
		}
		tradeID, err := s.engine.TakeV1Order(user, orderID)
		if err != nil {
			fail(w, err)
			return
		}
		s.writeFields(w, http.StatusOK, map[string]any{"trade_id": tradeID})
	case http.MethodGet:
		trades := s.engine.AllTrades()
		list := make([]any, 0, len(trades))
		for _, t := range trades {
			list = append(list, map[string]any{
				"trade_id":  t.TradeID,
				"buyer_id":  t.BuyerID,
				"seller_id": t.SellerID,
				"price":     t.Price,
				"quantity":  t.Quantity,
				"timestamp": t.Timestamp,
				"source":    t.Source,
			})
		}
		s.writeFields(w, http.StatusOK, map[string]any{"trades": list})
	default:
		http.NotFound(w, r)
	}
}
