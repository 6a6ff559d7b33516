// Package storetest is an in-memory implementation of every store
// interface, used by selector/reconciler/orchestrator tests instead of a
// real Postgres connection — mirroring discovery/inmem's
// production-vs-testing split for service discovery, applied here to the
// persistence gateway.
package storetest

import (
	"context"
	"sync"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/store"
)

// Gateway is an in-memory store.Gateway for tests.
type Gateway struct {
	mu sync.Mutex

	Relations map[domain.RequestKind]map[int64]*domain.Relation
	Requests  map[domain.RequestKind]map[int64]*domain.Request
	Products  map[int64]domain.Product
	Bots      map[string]*domain.EdgeBot
	Servers   map[string]domain.EdgeServer
	Tasks     map[string]*taskRow

	PurgedKeys []string
}

type taskRow struct {
	task            domain.EdgeTask
	serverIPAddress string
	botNetworkID    string
}

func New() *Gateway {
	return &Gateway{
		Relations: map[domain.RequestKind]map[int64]*domain.Relation{
			domain.UserRequestKind: {},
			domain.PaidRequestKind: {},
		},
		Requests: map[domain.RequestKind]map[int64]*domain.Request{
			domain.UserRequestKind: {},
			domain.PaidRequestKind: {},
		},
		Products: map[int64]domain.Product{},
		Bots:     map[string]*domain.EdgeBot{},
		Servers:  map[string]domain.EdgeServer{},
		Tasks:    map[string]*taskRow{},
	}
}

// AsGateway wraps g into a store.Gateway whose every interface member is
// backed by this in-memory fake.
func (g *Gateway) AsGateway() *store.Gateway {
	return &store.Gateway{
		Relations: &relationStore{g: g},
		Requests:  &requestStore{g: g},
		Products:  &productStore{g: g},
		Bots:      &botStore{g: g},
		Servers:   &serverStore{g: g},
		Tasks:     &taskStore{g: g},
	}
}

func (g *Gateway) SeedRelation(rel domain.Relation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copyRel := rel
	g.Relations[rel.Kind][rel.ID] = &copyRel
}

func (g *Gateway) SeedRequest(req domain.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copyReq := req
	g.Requests[req.Kind][req.ID] = &copyReq
}

func (g *Gateway) SeedProduct(p domain.Product) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Products[p.ID] = p
}

func (g *Gateway) SeedBot(b domain.EdgeBot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copyBot := b
	g.Bots[b.NetworkID] = &copyBot
}

func (g *Gateway) SeedServer(s domain.EdgeServer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Servers[s.CurrencyCode] = s
}

// SeedTask registers a pending task directly, for tests that start partway
// through a task's lifecycle (e.g. a checkout_cart or
// get_external_link_from_transid task whose preceding dispatch isn't itself
// under test).
func (g *Gateway) SeedTask(taskID string, taskName domain.TaskName, serverID, botID int64, shoppingCartGID *string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var serverIP, botNetwork string
	for _, server := range g.Servers {
		if server.ID == serverID {
			serverIP = server.IPAddress
		}
	}
	for _, bot := range g.Bots {
		if bot.ID == botID {
			botNetwork = bot.NetworkID
		}
	}

	g.Tasks[taskID] = &taskRow{
		task: domain.EdgeTask{
			TaskID:          taskID,
			TaskName:        taskName,
			TaskStatus:      domain.TaskPending,
			EdgeBotID:       botID,
			EdgeServerID:    serverID,
			ShoppingCartGID: shoppingCartGID,
		},
		serverIPAddress: serverIP,
		botNetworkID:    botNetwork,
	}
}

// --- relations ---

type relationStore struct{ g *Gateway }

func (s *relationStore) ListCandidates(ctx context.Context, kind domain.RequestKind, level domain.CommitmentLevel) ([]store.RelationCandidate, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	var out []store.RelationCandidate
	for _, rel := range s.g.Relations[kind] {
		if rel.CommitmentLevel != level || rel.Sent {
			continue
		}
		req, ok := s.g.Requests[kind][rel.RequestID]
		if !ok {
			continue
		}
		product, ok := s.g.Products[rel.ProductID]
		if !ok {
			continue
		}
		out = append(out, store.RelationCandidate{Relation: *rel, Request: *req, Product: product})
	}
	return out, nil
}

func (s *relationStore) Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Relation, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	rel, ok := s.g.Relations[kind][id]
	if !ok {
		return domain.Relation{}, store.ErrNotFound
	}
	return *rel, nil
}

func (s *relationStore) SetCommitment(ctx context.Context, kind domain.RequestKind, id int64, level domain.CommitmentLevel, taskID, committedOnBot, shoppingCartGID *string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	rel, ok := s.g.Relations[kind][id]
	if !ok {
		return store.ErrNotFound
	}
	rel.CommitmentLevel = level
	if taskID != nil {
		rel.TaskID = taskID
	}
	if committedOnBot != nil {
		rel.CommittedOnBot = committedOnBot
	}
	if shoppingCartGID != nil {
		rel.ShoppingCartGID = shoppingCartGID
	}
	s.g.PurgedKeys = append(s.g.PurgedKeys, string(kind))
	return nil
}

func (s *relationStore) RollbackPushedRelations(ctx context.Context, taskID string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	for _, kindMap := range s.g.Relations {
		for _, rel := range kindMap {
			if rel.TaskID != nil && *rel.TaskID == taskID {
				rel.CommitmentLevel = domain.Uncommitted
			}
		}
	}
	s.g.PurgedKeys = append(s.g.PurgedKeys, "paidrequest/relation/*", "userrequest/relation/*")
	return nil
}

func (s *relationStore) RollbackFailedRelations(ctx context.Context, shoppingCartGID string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	for _, kindMap := range s.g.Relations {
		for _, rel := range kindMap {
			if rel.ShoppingCartGID != nil && *rel.ShoppingCartGID == shoppingCartGID {
				rel.TaskID = nil
				rel.CommittedOnBot = nil
				rel.ShoppingCartGID = nil
				rel.CommitmentLevel = domain.Uncommitted
			}
		}
	}
	s.g.PurgedKeys = append(s.g.PurgedKeys, "paidrequest/relation/*", "userrequest/relation/*")
	return nil
}

func (s *relationStore) MarkPurchasedByShoppingCartGID(ctx context.Context, gid string) ([]domain.Relation, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	var affected []domain.Relation
	for _, kindMap := range s.g.Relations {
		for _, rel := range kindMap {
			if rel.ShoppingCartGID != nil && *rel.ShoppingCartGID == gid {
				rel.CommitmentLevel = domain.Purchased
				rel.Sent = true
				affected = append(affected, *rel)
			}
		}
	}
	s.g.PurgedKeys = append(s.g.PurgedKeys, "paidrequest/relation/*", "userrequest/relation/*")
	return affected, nil
}

func (s *relationStore) CountUnsent(ctx context.Context, kind domain.RequestKind, requestID int64) (int, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	count := 0
	for _, rel := range s.g.Relations[kind] {
		if rel.RequestID == requestID && !rel.Sent {
			count++
		}
	}
	return count, nil
}

// --- requests ---

type requestStore struct{ g *Gateway }

func (s *requestStore) Get(ctx context.Context, kind domain.RequestKind, id int64) (domain.Request, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	req, ok := s.g.Requests[kind][id]
	if !ok {
		return domain.Request{}, store.ErrNotFound
	}
	return *req, nil
}

func (s *requestStore) Assign(ctx context.Context, kind domain.RequestKind, id int64, ownerID int64) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	req, ok := s.g.Requests[kind][id]
	if !ok {
		return store.ErrNotFound
	}
	if req.AssignedUserID == nil {
		req.AssignedUserID = &ownerID
	}
	return nil
}

func (s *requestStore) Accept(ctx context.Context, kind domain.RequestKind, id int64) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	req, ok := s.g.Requests[kind][id]
	if !ok {
		return store.ErrNotFound
	}
	req.Accepted = true
	return nil
}

// --- products ---

type productStore struct{ g *Gateway }

func (s *productStore) Get(ctx context.Context, id int64) (domain.Product, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	p, ok := s.g.Products[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return p, nil
}

// --- bots ---

type botStore struct{ g *Gateway }

func (s *botStore) GetStandingByForCurrency(ctx context.Context, currency string, botType domain.EdgeBotType) (domain.EdgeBot, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	for _, bot := range s.g.Bots {
		if bot.CurrencyCode == currency && bot.BotType == botType && bot.Status == domain.StandingBy {
			return *bot, nil
		}
	}
	return domain.EdgeBot{}, store.ErrNotFound
}

func (s *botStore) GetByNetworkID(ctx context.Context, networkID string) (domain.EdgeBot, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	bot, ok := s.g.Bots[networkID]
	if !ok {
		return domain.EdgeBot{}, store.ErrNotFound
	}
	return *bot, nil
}

func (s *botStore) SetStatus(ctx context.Context, networkID string, status domain.EdgeBotStatus) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	bot, ok := s.g.Bots[networkID]
	if !ok {
		return store.ErrNotFound
	}
	bot.Status = status
	return nil
}

// --- servers ---

type serverStore struct{ g *Gateway }

func (s *serverStore) GetEnabledForCurrency(ctx context.Context, currency string) (domain.EdgeServer, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	server, ok := s.g.Servers[currency]
	if !ok || server.Status != domain.EdgeServerEnabled {
		return domain.EdgeServer{}, store.ErrNotFound
	}
	return server, nil
}

func (s *serverStore) UpdateHealthCheck(ctx context.Context, serverID int64) error {
	return nil
}

// --- tasks ---

type taskStore struct{ g *Gateway }

func (s *taskStore) Create(ctx context.Context, serverID, botID int64, taskID string, taskName domain.TaskName, shoppingCartGID *string) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	var serverIP, botNetwork string
	for _, server := range s.g.Servers {
		if server.ID == serverID {
			serverIP = server.IPAddress
		}
	}
	for _, bot := range s.g.Bots {
		if bot.ID == botID {
			botNetwork = bot.NetworkID
		}
	}

	s.g.Tasks[taskID] = &taskRow{
		task: domain.EdgeTask{
			TaskID:          taskID,
			TaskName:        taskName,
			TaskStatus:      domain.TaskPending,
			EdgeBotID:       botID,
			EdgeServerID:    serverID,
			ShoppingCartGID: shoppingCartGID,
		},
		serverIPAddress: serverIP,
		botNetworkID:    botNetwork,
	}
	return nil
}

func (s *taskStore) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	row, ok := s.g.Tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	row.task.TaskStatus = status
	return nil
}

func (s *taskStore) ListPending(ctx context.Context) ([]store.PendingTask, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	var out []store.PendingTask
	for _, row := range s.g.Tasks {
		if row.task.TaskStatus == domain.TaskPending {
			out = append(out, store.PendingTask{
				Task:            row.task,
				ServerIPAddress: row.serverIPAddress,
				BotNetworkID:    row.botNetworkID,
			})
		}
	}
	return out, nil
}
