// Package engine собирает компоненты движка оверлеев и принимает события хоста.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/annel0/blockdisguise/internal/config"
	"github.com/annel0/blockdisguise/internal/definition"
	"github.com/annel0/blockdisguise/internal/dispatch"
	"github.com/annel0/blockdisguise/internal/eventbus"
	"github.com/annel0/blockdisguise/internal/logging"
	"github.com/annel0/blockdisguise/internal/metrics"
	"github.com/annel0/blockdisguise/internal/placement"
	"github.com/annel0/blockdisguise/internal/relocation"
	"github.com/annel0/blockdisguise/internal/resolver"
	"github.com/annel0/blockdisguise/internal/storage"
	"github.com/annel0/blockdisguise/internal/vec"
	"github.com/annel0/blockdisguise/internal/world"
)

const (
	source             = "overlay-engine"
	defaultBusCapacity = 1024
	priorityHigh       = 7
)

// Options параметры сборки, которых нет в файле конфигурации
type Options struct {
	// Backend готовый носитель вместо описанного в cfg.Storage
	Backend storage.Backend
	// Random источник случайных чисел для дропа и метки перезагрузки
	Random      func() float64
	BusCapacity int
}

// Engine владеет всеми компонентами движка оверлеев
type Engine struct {
	cfg  *config.Config
	host world.Host

	defs       *definition.Store
	store      *storage.Store
	resolver   *resolver.Resolver
	dispatcher *dispatch.Dispatcher
	placement  *placement.Controller
	relocation *relocation.Controller

	bus     eventbus.EventBus
	metrics *metrics.Metrics
	logSub  eventbus.Subscription
	logger  *logging.Logger
}

// New собирает движок: backend, журнал, определения, резолвер, рассылка,
// установка, сдвиг, шина событий и метрики.
func New(cfg *config.Config, host world.Host, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applyLogLevel(cfg.Overlay.Debug)

	backend := opts.Backend
	if backend == nil {
		var err error
		if backend, err = OpenBackend(cfg); err != nil {
			return nil, fmt.Errorf("открытие хранилища оверлеев: %w", err)
		}
	}

	store, err := storage.NewStore(backend, storage.Options{
		Compression:     cfg.Storage.Compression,
		RecomputeWorlds: cfg.Overlay.RecomputeWorlds,
		Random:          opts.Random,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		host:   host,
		defs:   definition.NewStore(),
		store:  store,
		logger: logging.GetComponentLogger("engine"),
	}
	e.resolver = resolver.New(e.defs, host)
	e.dispatcher = dispatch.New(store, e.resolver, host)
	e.placement = placement.New(store, e.resolver, host)
	if opts.Random != nil {
		e.placement.SetRandom(opts.Random)
	}
	e.relocation = relocation.New(e.defs, store, e.placement, host)

	capacity := opts.BusCapacity
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	e.bus = eventbus.NewMemoryBus(capacity)
	if cfg.Overlay.Debug >= 4 {
		if e.logSub, err = eventbus.StartLoggingListener(e.bus); err != nil {
			e.Close()
			return nil, err
		}
	}
	if e.metrics, err = metrics.New(e.bus); err != nil {
		e.Close()
		return nil, err
	}
	if port := cfg.Metrics.GetMetricsPort(); port > 0 {
		e.metrics.StartHTTP(fmt.Sprintf(":%d", port))
	}

	if _, err := e.loadDefinitions(); err != nil {
		e.Close()
		return nil, err
	}

	e.logger.Info("движок оверлеев запущен: backend=%s, определений %d", cfg.Storage.Backend, e.defs.Len())
	return e, nil
}

// applyLogLevel консоль получает INFO и выше, файл всё начиная с уровня отладки
func applyLogLevel(debug int) {
	fileLevel := logging.LevelFromDebug(debug)
	consoleLevel := logging.INFO
	if fileLevel > consoleLevel {
		consoleLevel = fileLevel
	}
	logging.GetLoggerManager().SetAllLevels(consoleLevel, fileLevel)
}

// loadDefinitions читает каталог определений. Отсутствующий каталог даёт пустой набор.
func (e *Engine) loadDefinitions() (int, error) {
	n, err := e.defs.Load(e.cfg.Overlay.DefinitionsPath)
	if errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("каталог определений %s не найден, оверлеи не загружены", e.cfg.Overlay.DefinitionsPath)
		e.defs.Replace(nil)
		return 0, nil
	}
	return n, err
}

// Definitions текущий набор определений
func (e *Engine) Definitions() *definition.Store { return e.defs }

// Store журнал оверлеев
func (e *Engine) Store() *storage.Store { return e.store }

// Bus шина событий движка
func (e *Engine) Bus() eventbus.EventBus { return e.bus }

// Metrics метрики движка
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// OnChunkView отправляет зрителю маскировку всех оверлеев чанка
func (e *Engine) OnChunkView(viewer world.Viewer, key storage.ChunkKey) (int, error) {
	n, err := e.dispatcher.Dispatch(viewer, key)
	if err != nil {
		e.storageError(key.World, "dispatch", err)
	}
	if n > 0 {
		e.publish(eventbus.TypeChunkDispatched, key.World, 0, eventbus.DispatchEvent{
			ChunkX: key.X, ChunkZ: key.Z, Cells: n, Viewer: viewer.Name(),
		})
	}
	return n, err
}

// OnViewArea отправляет зрителю чанки в радиусе вокруг центрального
func (e *Engine) OnViewArea(viewer world.Viewer, worldName string, chunkX, chunkZ, radius int) (int, error) {
	n, err := e.dispatcher.DispatchArea(viewer, worldName, chunkX, chunkZ, radius)
	if err != nil {
		e.storageError(worldName, "dispatch_area", err)
	}
	if n > 0 {
		e.publish(eventbus.TypeChunkDispatched, worldName, 0, eventbus.DispatchEvent{
			ChunkX: chunkX, ChunkZ: chunkZ, Cells: n, Viewer: viewer.Name(),
		})
	}
	return n, err
}

// OnBlockUpdate пересчитывает кэш маскировки клетки после изменения её
// реального состояния. Возвращает новое маскирующее состояние.
func (e *Engine) OnBlockUpdate(loc world.Location) (string, bool, error) {
	state, ok, err := e.dispatcher.RefreshCell(loc)
	if err != nil {
		e.storageError(loc.World, "refresh", err)
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return state.String(), true, nil
}

// OnPlace ставит оверлей id в клетку
func (e *Engine) OnPlace(loc world.Location, id string, slot definition.Slot, actor world.Actor) error {
	if err := e.placement.Place(loc, id, slot, actor); err != nil {
		return err
	}
	e.publish(eventbus.TypeOverlayPlaced, loc.World, 0, eventbus.OverlayEvent{
		ID: id, Slot: slot.String(), X: loc.Pos.X, Y: loc.Pos.Y, Z: loc.Pos.Z, Actor: actorName(actor),
	})
	return nil
}

// OnBreak разрушает оверлей в клетке вместе с эффектами. Если в результате
// DefaultsReplaced, хост должен отменить собственный дроп.
func (e *Engine) OnBreak(loc world.Location, actor world.Actor, dropItems bool) (placement.DestroyResult, error) {
	res, err := e.placement.Destroy(loc, actor, placement.DestroyOptions{DropItems: dropItems, SpawnEffects: true})
	if err != nil {
		e.storageError(loc.World, "destroy", err)
	}
	if res.WasOverlay {
		e.publish(eventbus.TypeOverlayDestroyed, loc.World, 0, eventbus.OverlayEvent{
			ID: res.ID, Slot: res.Slot.String(), X: loc.Pos.X, Y: loc.Pos.Y, Z: loc.Pos.Z,
			Actor: actorName(actor), Drops: len(res.Drops.Items), XP: res.Drops.XP,
		})
	}
	return res, err
}

// OnPistonMove обрабатывает сдвиг пачки клеток. true означает, что хост
// должен отменить сдвиг целиком.
func (e *Engine) OnPistonMove(cells []world.Location, dir vec.Vec3, push bool) (bool, error) {
	if len(cells) == 0 {
		return false, nil
	}
	worldName := cells[0].World

	plan, cancel, err := e.relocation.Plan(cells, dir, push)
	if err != nil {
		e.storageError(worldName, "relocation", err)
		return false, err
	}
	if cancel {
		e.publish(eventbus.TypeRelocationCanceled, worldName, 0, eventbus.MoveEvent{Push: push})
		return true, nil
	}
	if len(plan.Moves) == 0 && len(plan.Destroy) == 0 {
		return false, nil
	}

	err = e.relocation.Apply(plan)
	if err != nil {
		e.storageError(worldName, "relocation", err)
	}
	e.publish(eventbus.TypeOverlaysMoved, worldName, 0, eventbus.MoveEvent{
		Push: push, Moved: len(plan.Moves), Destroyed: len(plan.Destroy),
	})
	return false, err
}

// Reload заново читает определения и выдаёт журналу новую метку, после чего
// весь кэш маскировки считается устаревшим.
func (e *Engine) Reload() (int, error) {
	n, err := e.loadDefinitions()
	if err != nil {
		return 0, err
	}
	e.store.Reload()
	e.publish(eventbus.TypeDefinitionsLoaded, "", 0, eventbus.ReloadEvent{Definitions: n, Token: e.store.Token()})
	return n, nil
}

// Close останавливает метрики и шину, затем закрывает журнал
func (e *Engine) Close() error {
	if e.metrics != nil {
		e.metrics.Stop()
	}
	if e.logSub != nil {
		e.logSub.Unsubscribe()
	}
	if e.bus != nil {
		e.bus.Close()
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("закрытие хранилища оверлеев: %w", err)
	}
	e.logger.Info("движок оверлеев остановлен")
	return nil
}

func (e *Engine) storageError(worldName, op string, err error) {
	e.publish(eventbus.TypeStorageError, worldName, priorityHigh, eventbus.StorageErrorEvent{Op: op, Error: err.Error()})
}

func (e *Engine) publish(eventType, worldName string, priority int, payload interface{}) {
	ev, err := eventbus.NewEnvelope(source, eventType, worldName, payload)
	if err != nil {
		e.logger.Warn("событие %s не создано: %v", eventType, err)
		return
	}
	ev.Priority = priority
	if err := e.bus.Publish(context.Background(), ev); err != nil {
		e.logger.Warn("событие %s не опубликовано: %v", eventType, err)
	}
}

func actorName(actor world.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.Name()
}
