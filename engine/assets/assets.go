package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima3d/engine/assets/loaders"
	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes every asset under a root directory and keeps the index
 * current through fsnotify. Assets are addressed by their slash-separated
 * path relative to the root, e.g. "models/cube.obj".
 */
type AssetManager struct {
	basePath string
	assets   map[string]AssetInfo
	loaders  map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	abs, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.basePath = abs

	// Register loaders
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.ObjLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(metadata.ResourceTypePipelineConfig, &loaders.PipelineConfigLoader{})

	if err := am.addRecursive(am.basePath); err != nil {
		return err
	}

	am.started = true
	go am.start()

	core.LogDebug("asset manager indexed %d assets under `%s`", am.Count(), am.basePath)
	return nil
}

// Shutdown stops the watcher goroutine and releases the fsnotify handle.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if !am.started {
		return am.fsnotify.Close()
	}
	<-am.stopped
	return nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Count returns the number of indexed assets.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Exists reports whether name resolves to an indexed asset.
func (am *AssetManager) Exists(name string) bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	_, ok := am.assets[am.key(name)]
	return ok
}

// key normalises a name (relative or absolute path) into an index key.
func (am *AssetManager) key(name string) string {
	if filepath.IsAbs(name) {
		if rel, err := filepath.Rel(am.basePath, name); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(name))
}

// Load an asset using the appropriate loader
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	key := am.key(name)

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, name)
	}
	if asset.Type != resourceType {
		return nil, fmt.Errorf("asset `%s` is a %s resource, not %s", name, asset.Type, resourceType)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}

	return loader.Load(filepath.Join(am.basePath, filepath.FromSlash(key)), resourceType, params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	return nil
}

func (am *AssetManager) LoadGeometry(name string) (*metadata.GeometryData, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeMesh, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*metadata.GeometryData), nil
}

func (am *AssetManager) LoadImage(name string) (*metadata.ImageData, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeImage, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*metadata.ImageData), nil
}

func (am *AssetManager) LoadShader(name string) ([]uint32, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeBinary, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.([]uint32), nil
}

// LoadPipelineConfig reads a pipeline description and resolves its shader modules.
func (am *AssetManager) LoadPipelineConfig(name string) (*metadata.PipelineConfig, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypePipelineConfig, nil)
	if err != nil {
		return nil, err
	}
	config := res.Data.(*metadata.PipelineConfig)
	if config.VertexShaderCode, err = am.LoadShader(config.VertexShader); err != nil {
		return nil, err
	}
	if config.FragmentShaderCode, err = am.LoadShader(config.FragmentShader); err != nil {
		return nil, err
	}
	return config, nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("failed to watch `%s`: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			// Can't stat a deleted path, so drop it from the index and the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes every file found along the way.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return
	}
	key := am.key(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[key] = AssetInfo{
		Path:       key,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, am.key(path))
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return metadata.ResourceTypeBinary
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".obj":
		return metadata.ResourceTypeMesh
	case ".toml":
		return metadata.ResourceTypePipelineConfig
	default:
		return metadata.ResourceTypeNone
	}
}
