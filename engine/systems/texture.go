package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

/** @brief Decodes image assets into RGBA8 pixels. */
type ImageLoader interface {
	LoadImage(name string) (*metadata.ImageData, error)
}

/** @brief The texture system configuration */
type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
	/**
	 * @brief Image used as the default texture. When empty or missing, a
	 * checkerboard is generated instead.
	 */
	DefaultTexturePath string
}

type textureReference struct {
	referenceCount uint64
	handle         uint32
}

type TextureSystem struct {
	Config         *TextureSystemConfig
	DefaultTexture *metadata.Texture

	/** @brief Array of registered textures, indexed by handle. */
	registeredTextures []*metadata.Texture
	/** @brief Hashtable for texture lookups. */
	registeredTextureTable map[string]*textureReference

	images      ImageLoader
	backend     renderer.TextureBackend
	initialized bool
}

/**
 * @brief Creates the texture system. No texture is created until
 * Initialize is called.
 */
func NewTextureSystem(config *TextureSystemConfig, images ImageLoader, backend renderer.TextureBackend) (*TextureSystem, error) {
	if config == nil || config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount: %w", core.ErrZeroCapacity)
		core.LogError(err.Error())
		return nil, err
	}
	if images == nil || backend == nil {
		err := errors.New("func NewTextureSystem - image loader and texture backend are required")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:                 config,
		registeredTextures:     make([]*metadata.Texture, config.MaxTextureCount),
		registeredTextureTable: make(map[string]*textureReference, config.MaxTextureCount),
		images:                 images,
		backend:                backend,
	}, nil
}

// Initialize uploads the default texture.
func (ts *TextureSystem) Initialize() error {
	if ts.initialized {
		return core.ErrAlreadyInitialized
	}
	var pixels []uint8
	texture := &metadata.Texture{
		ID:         metadata.InvalidID,
		Name:       metadata.DEFAULT_TEXTURE_NAME,
		Generation: metadata.InvalidID,
	}
	if ts.Config.DefaultTexturePath != "" {
		img, err := ts.images.LoadImage(ts.Config.DefaultTexturePath)
		if err != nil {
			core.LogWarn("default texture '%s' could not be loaded, generating one: %s", ts.Config.DefaultTexturePath, err.Error())
		} else {
			texture.Width = img.Width
			texture.Height = img.Height
			texture.ChannelCount = img.ChannelCount
			texture.HasTransparency = hasTransparency(img.Pixels, img.ChannelCount)
			pixels = img.Pixels
		}
	}
	if pixels == nil {
		pixels = checkerboard(texture)
	}
	if err := ts.backend.TextureCreate(pixels, texture); err != nil {
		err = fmt.Errorf("failed to create default texture: %w", err)
		core.LogError(err.Error())
		return err
	}
	ts.DefaultTexture = texture
	ts.initialized = true
	return nil
}

/**
 * @brief Shuts down the texture system, destroying every registered
 * texture along with the default one.
 */
func (ts *TextureSystem) Shutdown() error {
	for i, t := range ts.registeredTextures {
		if t == nil {
			continue
		}
		ts.backend.TextureDestroy(t)
		ts.registeredTextures[i] = nil
	}
	clear(ts.registeredTextureTable)
	if ts.DefaultTexture != nil {
		ts.backend.TextureDestroy(ts.DefaultTexture)
		ts.DefaultTexture = nil
	}
	ts.initialized = false
	return nil
}

func (ts *TextureSystem) isDefault(name string) bool {
	return name == metadata.DEFAULT_TEXTURE_NAME || (ts.Config.DefaultTexturePath != "" && name == ts.Config.DefaultTexturePath)
}

/**
 * @brief Attempts to acquire a texture with the given name. If it has not
 * yet been loaded, this triggers it to load. If the texture is not found,
 * an error is returned. Internal reference counter is incremented.
 */
func (ts *TextureSystem) Load(name string) (*metadata.Texture, error) {
	if !ts.initialized {
		return nil, core.ErrNotInitialized
	}
	if name == "" {
		return nil, fmt.Errorf("texture name cannot be empty: %w", core.ErrAssetNotFound)
	}
	if ts.isDefault(name) {
		return ts.DefaultTexture, nil
	}
	if ref, ok := ts.registeredTextureTable[name]; ok {
		ref.referenceCount++
		return ts.registeredTextures[ref.handle], nil
	}

	handle := metadata.InvalidID
	for i, t := range ts.registeredTextures {
		if t == nil {
			handle = uint32(i)
			break
		}
	}
	if handle == metadata.InvalidID {
		err := fmt.Errorf("texture system cannot hold '%s', adjust configuration to allow more: %w", name, core.ErrPoolExhausted)
		core.LogWarn(err.Error())
		return nil, err
	}

	img, err := ts.images.LoadImage(name)
	if err != nil {
		core.LogError("failed to load image resource for texture '%s': %s", name, err.Error())
		return nil, err
	}
	texture := &metadata.Texture{
		ID:              handle,
		Name:            name,
		Width:           img.Width,
		Height:          img.Height,
		ChannelCount:    img.ChannelCount,
		HasTransparency: hasTransparency(img.Pixels, img.ChannelCount),
	}
	if err := ts.backend.TextureCreate(img.Pixels, texture); err != nil {
		core.LogError("failed to upload texture '%s': %s", name, err.Error())
		return nil, err
	}
	ts.registeredTextures[handle] = texture
	ts.registeredTextureTable[name] = &textureReference{referenceCount: 1, handle: handle}
	core.LogDebug("texture '%s' loaded into slot %d", name, handle)
	return texture, nil
}

/**
 * @brief Releases a texture. The default texture is never released.
 * Once the reference count reaches 0 the texture is destroyed.
 */
func (ts *TextureSystem) Release(texture *metadata.Texture) {
	if texture == nil || texture == ts.DefaultTexture {
		return
	}
	ref, ok := ts.registeredTextureTable[texture.Name]
	if !ok || ts.registeredTextures[ref.handle] != texture {
		core.LogWarn("release of unknown texture '%s', nothing was done", texture.Name)
		return
	}
	ref.referenceCount--
	if ref.referenceCount > 0 {
		return
	}
	ts.backend.TextureDestroy(texture)
	ts.registeredTextures[ref.handle] = nil
	delete(ts.registeredTextureTable, texture.Name)
	core.LogDebug("texture '%s' released", texture.Name)
}

func (ts *TextureSystem) GetDefault() *metadata.Texture {
	if ts.DefaultTexture == nil {
		core.LogWarn("texture system not initialized, no default texture available")
	}
	return ts.DefaultTexture
}

// Count reports the number of loaded textures, excluding the default.
func (ts *TextureSystem) Count() int {
	return len(ts.registeredTextureTable)
}

// checkerboard fills texture with a 256x256 blue/white pattern and returns its pixels.
func checkerboard(texture *metadata.Texture) []uint8 {
	const dimension = 256
	const channels = 4

	pixels := make([]uint8, dimension*dimension*channels)
	for i := range pixels {
		pixels[i] = 255
	}
	for row := 0; row < dimension; row++ {
		for col := 0; col < dimension; col++ {
			if row%2 == col%2 {
				index := (row*dimension + col) * channels
				pixels[index+0] = 0
				pixels[index+1] = 0
			}
		}
	}
	texture.Width = dimension
	texture.Height = dimension
	texture.ChannelCount = channels
	return pixels
}

func hasTransparency(pixels []uint8, channels uint8) bool {
	if channels != 4 {
		return false
	}
	for i := 3; i < len(pixels); i += 4 {
		if pixels[i] < 255 {
			return true
		}
	}
	return false
}
