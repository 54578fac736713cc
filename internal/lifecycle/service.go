// Package lifecycle is the engine that moves a donation through its states.
//
// A donation is born Published and owned by its donor plus a graft onto the
// shared drivers registry, so any registered driver can accept it. Each
// transition narrows or transfers that ownership: accepting narrows it to the
// one driver, completing hands the document to the receiving facility.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	dErrors "givingchain/pkg/domain-errors"
	"givingchain/pkg/platform/sentinel"
	"givingchain/pkg/requestcontext"

	"givingchain/internal/audit"
	"givingchain/internal/collection"
	"givingchain/internal/documents"
	"givingchain/internal/identity"
	"givingchain/internal/keyring"
	"givingchain/internal/lifecycle/metrics"
	"givingchain/internal/registry"
	"givingchain/internal/trackable"
)

var tracer = otel.Tracer("givingchain/internal/lifecycle")

// Config carries the engine's dependencies. Everything is injected; the
// engine holds no process-wide state of its own.
type Config struct {
	Store         documents.Store
	Collection    *collection.Collection
	Drivers       *registry.Drivers
	Recipients    *registry.Recipients
	Identity      *identity.Service
	Auditor       *audit.Publisher
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	HandleOptions []documents.HandleOption
}

// Service implements the donation lifecycle operations.
type Service struct {
	store      documents.Store
	collection *collection.Collection
	drivers    *registry.Drivers
	recipients *registry.Recipients
	identity   *identity.Service
	auditor    *audit.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	opts       []documents.HandleOption
}

func NewService(cfg Config) *Service {
	return &Service{
		store:      cfg.Store,
		collection: cfg.Collection,
		drivers:    cfg.Drivers,
		recipients: cfg.Recipients,
		identity:   cfg.Identity,
		auditor:    cfg.Auditor,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		opts:       cfg.HandleOptions,
	}
}

// CollectionDID identifies the shared index document this engine writes to.
func (s *Service) CollectionDID() string { return s.collection.DID() }

// RegisterDriver enrolls an account in the region's drivers registry so the
// registry graft starts authorizing it.
func (s *Service) RegisterDriver(ctx context.Context, actor identity.Actor) error {
	ctx, span := tracer.Start(ctx, "lifecycle.RegisterDriver")
	defer span.End()

	if !actor.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthenticated, "login required")
	}
	if err := s.drivers.AddDriver(ctx, actor.DID); err != nil {
		return storeError(err)
	}
	s.emit(ctx, audit.EventDriverRegistered, actor, s.drivers.DID(), "")
	return nil
}

// CreateRecipient registers a receiving facility and lists it in the
// region's directory.
func (s *Service) CreateRecipient(ctx context.Context, name, password string, addr trackable.Address, instructions string) (*registry.Recipient, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.CreateRecipient")
	defer span.End()
	defer s.observe("create_recipient", time.Now())

	rec, err := registry.CreateRecipient(ctx, s.store, name, password, addr, instructions)
	if err != nil {
		return nil, s.fail("create_recipient", err)
	}
	if err := s.recipients.Add(ctx, rec.DID); err != nil {
		return nil, s.fail("create_recipient", storeError(err))
	}
	s.emit(ctx, audit.EventRecipientRegistered, identity.Actor{}, rec.DID, name)
	s.metrics.IncrementOutcome("create_recipient", "ok")
	return rec, nil
}

// CreateTrackableInput is what a donor supplies for a new donation.
type CreateTrackableInput struct {
	Name         string
	Image        string
	Address      trackable.Address
	Instructions string
}

// CreateTrackable publishes a new donation and indexes it in the shared
// collection. The two writes are an at-least-once pair, not a transaction:
// the index write is idempotent so a retry after partial failure converges.
func (s *Service) CreateTrackable(ctx context.Context, actor identity.Actor, input CreateTrackableInput) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.CreateTrackable")
	defer span.End()
	defer s.observe("create_trackable", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("create_trackable", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}
	if input.Name == "" {
		return nil, s.fail("create_trackable", dErrors.New(dErrors.CodeBadRequest, "name is required"))
	}

	key, err := keyring.Generate()
	if err != nil {
		return nil, s.fail("create_trackable", dErrors.Wrap(dErrors.CodeInternal, "key generation failed", err))
	}
	span.SetAttributes(attribute.String("trackable.did", key.DID()))

	now := requestcontext.Now(ctx)

	var initialMeta []trackable.MetadataEntry
	if input.Instructions != "" {
		initialMeta = append(initialMeta, trackable.MetadataEntry{
			Key:   trackable.InstructionsKey,
			Value: trackable.TextValue(input.Instructions),
		})
	}
	update := trackable.UpdateNode(uuid.NewString(), now, "ready for pickup", initialMeta, actor.DID, actor.Username)

	// donor keeps write access; the registry graft lets any driver accept
	ownership := append([]string{actor.Key.Address()}, s.drivers.GraftableOwnership()...)

	txns := []documents.Transaction{
		documents.SetData(trackable.NamePath, input.Name),
		documents.SetData(trackable.StatusPath, string(trackable.StatusPublished)),
		documents.SetData(trackable.MetadataEntryPath(trackable.LocationKey), trackable.LocationValue(input.Address).ToJSON()),
		documents.SetData(trackable.UpdatePath(now), update),
	}
	if input.Image != "" {
		txns = append(txns, documents.SetData(trackable.ImagePath, input.Image))
	}
	txns = append(txns, documents.SetOwnership(ownership...))

	handle, err := documents.FindOrCreate(ctx, s.store, key.DID(), key, s.opts...)
	if err != nil {
		return nil, s.fail("create_trackable", storeError(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return handle.Apply(gctx, txns...) })
	g.Go(func() error { return s.collection.Add(gctx, key.DID()) })
	if err := g.Wait(); err != nil {
		return nil, s.fail("create_trackable", storeError(err))
	}

	s.metrics.IncrementTrackablesCreated()
	s.emit(ctx, audit.EventDonationCreated, actor, key.DID(), input.Name)
	s.logger.InfoContext(ctx, "trackable created", "did", key.DID(), "donor", actor.DID)
	s.metrics.IncrementOutcome("create_trackable", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// GetTrackable resolves a donation's read model.
func (s *Service) GetTrackable(ctx context.Context, did string) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.GetTrackable", trace.WithAttributes(attribute.String("trackable.did", did)))
	defer span.End()

	doc, err := s.store.ResolveLatest(ctx, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(dErrors.CodeNotFound, "no such trackable", err)
		}
		return nil, storeError(err)
	}
	return trackable.FromDocument(doc), nil
}

// ListTrackables returns every indexed donation with its claim state. Only
// the index is consulted; callers resolve individual documents on demand.
func (s *Service) ListTrackables(ctx context.Context) ([]*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ListTrackables")
	defer span.End()

	entries, err := s.collection.Entries(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]*trackable.Trackable, 0, len(entries))
	for _, e := range entries {
		out = append(out, &trackable.Trackable{DID: e.DID, Driver: e.Owner})
	}
	return out, nil
}

// AddUpdate appends a log entry to a donation without touching its status.
func (s *Service) AddUpdate(ctx context.Context, actor identity.Actor, trackableDID, message string, meta []trackable.MetadataEntry) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.AddUpdate", trace.WithAttributes(attribute.String("trackable.did", trackableDID)))
	defer span.End()
	defer s.observe("add_update", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("add_update", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}

	handle, err := s.handleFor(ctx, trackableDID, actor)
	if err != nil {
		return nil, s.fail("add_update", err)
	}

	now := requestcontext.Now(ctx)
	update := trackable.UpdateNode(uuid.NewString(), now, message, meta, actor.DID, actor.Username)
	err = handle.Update(ctx, func(*documents.Document) ([]documents.Transaction, error) {
		return []documents.Transaction{documents.SetData(trackable.UpdatePath(now), update)}, nil
	})
	if err != nil {
		return nil, s.fail("add_update", storeError(err))
	}

	s.emit(ctx, audit.EventUpdateAdded, actor, trackableDID, message)
	s.metrics.IncrementOutcome("add_update", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// AddCollaborator unions a named user's ownership addresses into the
// donation's ownership set and records them under the collaborators node.
func (s *Service) AddCollaborator(ctx context.Context, actor identity.Actor, trackableDID, username string) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.AddCollaborator", trace.WithAttributes(attribute.String("trackable.did", trackableDID)))
	defer span.End()
	defer s.observe("add_collaborator", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("add_collaborator", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}

	account, err := s.identity.FindAccount(ctx, username)
	if err != nil {
		return nil, s.fail("add_collaborator", err)
	}

	handle, err := s.handleFor(ctx, trackableDID, actor)
	if err != nil {
		return nil, s.fail("add_collaborator", err)
	}

	err = handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		merged := unionOwnership(doc.Ownership, account.Ownership)
		return []documents.Transaction{
			documents.SetOwnership(merged...),
			documents.SetData(trackable.CollaboratorPath(account.DID), true),
		}, nil
	})
	if err != nil {
		return nil, s.fail("add_collaborator", storeError(err))
	}

	s.emit(ctx, audit.EventCollaboratorAdded, actor, trackableDID, username)
	s.metrics.IncrementOutcome("add_collaborator", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// AcceptJob claims a published donation for the calling driver. Ownership is
// replaced with exactly the driver plus the registry, revoking the broad
// any-driver grant, and the collection index is claimed to match.
func (s *Service) AcceptJob(ctx context.Context, actor identity.Actor, trackableDID string) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.AcceptJob", trace.WithAttributes(attribute.String("trackable.did", trackableDID)))
	defer span.End()
	defer s.observe("accept_job", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("accept_job", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}

	handle, err := s.handleFor(ctx, trackableDID, actor)
	if err != nil {
		return nil, s.fail("accept_job", err)
	}

	now := requestcontext.Now(ctx)
	update := trackable.UpdateNode(uuid.NewString(), now, "accepted by driver", nil, actor.DID, actor.Username)
	err = handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		if err := s.requireAcceptGrant(doc, actor); err != nil {
			return nil, err
		}
		if err := requireTransition(doc, trackable.StatusAccepted); err != nil {
			return nil, err
		}
		return []documents.Transaction{
			documents.SetData(trackable.UpdatePath(now), update),
			documents.SetData(trackable.DriverPath, actor.DID),
			documents.SetData(trackable.StatusPath, string(trackable.StatusAccepted)),
			documents.SetOwnership(actor.Key.Address(), s.drivers.DID()),
		}, nil
	})
	if err != nil {
		return nil, s.fail("accept_job", storeError(err))
	}

	if err := s.collection.Claim(ctx, trackableDID, actor.DID); err != nil {
		return nil, s.fail("accept_job", storeError(err))
	}

	s.emit(ctx, audit.EventJobAccepted, actor, trackableDID, "")
	s.metrics.IncrementOutcome("accept_job", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// PickupDonation marks an accepted donation as collected, optionally
// attaching a confirmation photo reference to the update entry.
func (s *Service) PickupDonation(ctx context.Context, actor identity.Actor, trackableDID, imageURL string) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.PickupDonation", trace.WithAttributes(attribute.String("trackable.did", trackableDID)))
	defer span.End()
	defer s.observe("pickup_donation", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("pickup_donation", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}

	handle, err := s.handleFor(ctx, trackableDID, actor)
	if err != nil {
		return nil, s.fail("pickup_donation", err)
	}

	now := requestcontext.Now(ctx)
	var meta []trackable.MetadataEntry
	if imageURL != "" {
		meta = append(meta, trackable.MetadataEntry{
			Key:   trackable.ConfirmationImageKey,
			Value: trackable.ImageRefValue(imageURL),
		})
	}
	update := trackable.UpdateNode(uuid.NewString(), now, "picked up", meta, actor.DID, actor.Username)

	err = handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		if err := requireAssignedDriver(doc, actor.DID); err != nil {
			return nil, err
		}
		if err := requireTransition(doc, trackable.StatusPickedUp); err != nil {
			return nil, err
		}
		return []documents.Transaction{
			documents.SetData(trackable.UpdatePath(now), update),
			documents.SetData(trackable.StatusPath, string(trackable.StatusPickedUp)),
		}, nil
	})
	if err != nil {
		return nil, s.fail("pickup_donation", storeError(err))
	}

	s.emit(ctx, audit.EventDonationPickedUp, actor, trackableDID, imageURL)
	s.metrics.IncrementOutcome("pickup_donation", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// CompleteJob delivers the donation and transfers the document to the
// receiving facility, permanently ending the driver's write access. An empty
// recipientDID falls back to the region's first registered recipient.
func (s *Service) CompleteJob(ctx context.Context, actor identity.Actor, trackableDID, recipientDID string) (*trackable.Trackable, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.CompleteJob", trace.WithAttributes(attribute.String("trackable.did", trackableDID)))
	defer span.End()
	defer s.observe("complete_job", time.Now())

	if !actor.Authenticated() {
		return nil, s.fail("complete_job", dErrors.New(dErrors.CodeUnauthenticated, "login required"))
	}

	if recipientDID == "" {
		first, err := s.recipients.First(ctx)
		if err != nil {
			return nil, s.fail("complete_job", err)
		}
		recipientDID = first.DID
	}

	handle, err := s.handleFor(ctx, trackableDID, actor)
	if err != nil {
		return nil, s.fail("complete_job", err)
	}

	now := requestcontext.Now(ctx)
	update := trackable.UpdateNode(uuid.NewString(), now, "delivered", nil, actor.DID, actor.Username)

	err = handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		if err := requireAssignedDriver(doc, actor.DID); err != nil {
			return nil, err
		}
		if err := requireTransition(doc, trackable.StatusDelivered); err != nil {
			return nil, err
		}
		return []documents.Transaction{
			documents.SetData(trackable.UpdatePath(now), update),
			documents.SetData(trackable.StatusPath, string(trackable.StatusDelivered)),
			documents.SetOwnership(recipientDID),
		}, nil
	})
	if err != nil {
		return nil, s.fail("complete_job", storeError(err))
	}

	s.emit(ctx, audit.EventJobCompleted, actor, trackableDID, recipientDID)
	s.metrics.IncrementOutcome("complete_job", "ok")
	return trackable.FromDocument(handle.Document()), nil
}

// handleFor binds the actor's key to an existing donation document.
func (s *Service) handleFor(ctx context.Context, did string, actor identity.Actor) (*documents.Handle, error) {
	if _, err := s.store.ResolveLatest(ctx, did); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(dErrors.CodeNotFound, "no such trackable", err)
		}
		return nil, storeError(err)
	}
	return documents.FindOrCreate(ctx, s.store, did, actor.Key, s.opts...)
}

// requireTransition enforces the single-step forward status machine.
func requireTransition(doc *documents.Document, next trackable.Status) error {
	cur := trackable.StatusCreated
	if v, ok := doc.Resolve(trackable.StatusPath); ok {
		if str, ok := v.(string); ok {
			cur = trackable.Status(str)
		}
	}
	if !cur.CanAdvanceTo(next) {
		return dErrors.New(dErrors.CodeConflict, "trackable is "+string(cur)+", cannot become "+string(next))
	}
	return nil
}

// requireAcceptGrant checks the ownership entries the accept path can ride
// on. The store re-verifies through graft resolution on append; this runs
// first so a revoked grant surfaces as Unauthorized, not as a bad transition.
func (s *Service) requireAcceptGrant(doc *documents.Document, actor identity.Actor) error {
	allowed := map[string]bool{
		actor.Key.Address(): true,
		actor.DID:           true,
		s.drivers.DID():     true,
		documents.GraftEntry(s.drivers.DID(), registry.DriversPath): true,
	}
	for _, entry := range doc.Ownership {
		if allowed[entry] {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "not permitted to accept this job")
}

// requireAssignedDriver rejects lifecycle calls from anyone but the driver
// who accepted the job.
func requireAssignedDriver(doc *documents.Document, actorDID string) error {
	v, ok := doc.Resolve(trackable.DriverPath)
	driver, _ := v.(string)
	if !ok || driver != actorDID {
		return dErrors.New(dErrors.CodeUnauthorized, "not the assigned driver")
	}
	return nil
}

func unionOwnership(current, extra []string) []string {
	seen := make(map[string]bool, len(current)+len(extra))
	merged := make([]string, 0, len(current)+len(extra))
	for _, entry := range append(append([]string{}, current...), extra...) {
		if seen[entry] {
			continue
		}
		seen[entry] = true
		merged = append(merged, entry)
	}
	return merged
}

// storeError maps infrastructure sentinels onto caller-facing codes.
func storeError(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrUnauthorized):
		return dErrors.Wrap(dErrors.CodeUnauthorized, "not permitted to modify this trackable", err)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, "trackable changed concurrently", err)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "document not found", err)
	default:
		return dErrors.Wrap(dErrors.CodeUnavailable, "document store unavailable", err)
	}
}

func (s *Service) observe(operation string, start time.Time) {
	s.metrics.ObserveLatency(operation, time.Since(start))
}

func (s *Service) fail(operation string, err error) error {
	s.metrics.IncrementOutcome(operation, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, actor identity.Actor, subject, detail string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    string(action),
		ActorDID:  actor.DID,
		ActorName: actor.Username,
		Subject:   subject,
		Detail:    detail,
	})
}
