package metadata

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "default"
)

/**
 * @brief Represents a texture.
 */
type Texture struct {
	/** @brief The unique texture identifier. */
	ID uint32
	/** @brief The texture width. */
	Width uint32
	/** @brief The texture height. */
	Height uint32
	/** @brief The number of channels in the texture. */
	ChannelCount uint8
	/** @brief Indicates if the texture has transparency. */
	HasTransparency bool
	/** @brief The texture generation. Incremented every time the data is reloaded. */
	Generation uint32
	/** @brief The texture name. */
	Name string
	/** @brief The raw texture data (pixels). */
	InternalData interface{}
}

/** @brief Decoded RGBA8 pixels as produced by the image loader. */
type ImageData struct {
	Name         string
	Width        uint32
	Height       uint32
	ChannelCount uint8
	Pixels       []byte
}
