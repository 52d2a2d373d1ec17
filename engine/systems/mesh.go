package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima3d/engine/core"
	"github.com/spaghettifunk/anima3d/engine/math"
	"github.com/spaghettifunk/anima3d/engine/renderer"
	"github.com/spaghettifunk/anima3d/engine/renderer/metadata"
)

/** @brief Parses mesh files into vertex/face data. */
type GeometryLoader interface {
	LoadGeometry(name string) (*metadata.GeometryData, error)
}

/** @brief Supplies the matrices every mesh draw is projected with. */
type CameraProvider interface {
	GetView() math.Mat4
	GetProjection() math.Mat4
}

/** @brief Reference counted texture provider used for the default mesh texture. */
type TextureProvider interface {
	Load(name string) (*metadata.Texture, error)
	Release(texture *metadata.Texture)
	GetDefault() *metadata.Texture
}

/** @brief The renderer surface the mesh system needs. */
type MeshBackend interface {
	renderer.BufferBackend
	renderer.PipelineBackend
}

/** @brief The mesh system configuration. */
type MeshSystemConfig struct {
	/** @brief Number of mesh slots. Fixed for the lifetime of the system. */
	MaxMeshCount uint32
	/**
	 * @brief Shader and raster state of the model pipeline. Layout, draw
	 * capacity, uniform size and index type are filled in by the system.
	 */
	PipelineConfig *metadata.PipelineConfig
	/** @brief Texture used by draws that do not provide one. */
	DefaultTexturePath string
}

/**
 * @brief Owns a fixed pool of meshes, their GPU buffers and the model
 * pipeline every mesh is drawn with.
 */
type MeshSystem struct {
	Config *MeshSystemConfig

	meshes         []metadata.Mesh
	count          uint32
	chainLength    uint32
	vertexLayout   metadata.VertexLayout
	pipeline       renderer.Pipeline
	defaultTexture *metadata.Texture
	initialized    bool

	backend  MeshBackend
	textures TextureProvider
	geometry GeometryLoader
	camera   CameraProvider
}

func NewMeshSystem(config *MeshSystemConfig, backend MeshBackend, textures TextureProvider, geometry GeometryLoader, camera CameraProvider) (*MeshSystem, error) {
	if config == nil {
		err := errors.New("func NewMeshSystem - config cannot be nil")
		core.LogError(err.Error())
		return nil, err
	}
	if backend == nil || textures == nil || geometry == nil || camera == nil {
		err := errors.New("func NewMeshSystem - backend, textures, geometry loader and camera are required")
		core.LogError(err.Error())
		return nil, err
	}
	return &MeshSystem{
		Config:   config,
		backend:  backend,
		textures: textures,
		geometry: geometry,
		camera:   camera,
	}, nil
}

/**
 * @brief Allocates the mesh pool, creates the model pipeline and loads
 * the default texture. A zero capacity leaves the system uninitialized.
 */
func (ms *MeshSystem) Initialize() error {
	if ms.initialized {
		core.LogWarn("mesh system already initialized")
		return core.ErrAlreadyInitialized
	}
	if ms.Config.MaxMeshCount == 0 {
		err := fmt.Errorf("cannot initialize mesh system for 0 meshes: %w", core.ErrZeroCapacity)
		core.LogError(err.Error())
		return err
	}

	ms.chainLength = ms.backend.ChainLength()
	ms.vertexLayout = metadata.NewVertex3DLayout()

	pipelineConfig := metadata.PipelineConfig{}
	if ms.Config.PipelineConfig != nil {
		pipelineConfig = *ms.Config.PipelineConfig
	}
	pipelineConfig.VertexLayout = ms.vertexLayout
	pipelineConfig.MaxDraws = ms.Config.MaxMeshCount
	pipelineConfig.UniformSize = metadata.MeshUBOSize
	pipelineConfig.IndexType = metadata.IndexTypeUint16
	pipelineConfig.ChainLength = ms.chainLength

	pipeline, err := ms.backend.PipelineCreate(&pipelineConfig)
	if err != nil {
		err = fmt.Errorf("failed to create model pipeline: %w", err)
		core.LogError(err.Error())
		ms.chainLength = 0
		ms.vertexLayout = metadata.VertexLayout{}
		return err
	}
	ms.pipeline = pipeline

	texture, err := ms.textures.Load(ms.Config.DefaultTexturePath)
	if err != nil {
		core.LogWarn("failed to load default mesh texture '%s', falling back: %s", ms.Config.DefaultTexturePath, err.Error())
		texture = ms.textures.GetDefault()
	}
	ms.defaultTexture = texture

	ms.meshes = make([]metadata.Mesh, ms.Config.MaxMeshCount)
	ms.initialized = true
	core.LogDebug("mesh system initialized with %d slots, chain length %d", ms.Config.MaxMeshCount, ms.chainLength)
	return nil
}

/**
 * @brief Frees every mesh still in use, the pipeline and the default
 * texture, leaving the system as it was before Initialize.
 */
func (ms *MeshSystem) Shutdown() error {
	for i := range ms.meshes {
		mesh := &ms.meshes[i]
		if mesh.ReferenceCount == 0 {
			continue
		}
		core.LogWarn("mesh '%s' in slot %d leaked, reclaiming", mesh.Filename, i)
		ms.freePrimitives(mesh)
		*mesh = metadata.Mesh{}
	}
	if ms.pipeline != nil {
		ms.pipeline.Destroy()
		ms.pipeline = nil
	}
	if ms.defaultTexture != nil {
		ms.textures.Release(ms.defaultTexture)
		ms.defaultTexture = nil
	}
	ms.meshes = nil
	ms.count = 0
	ms.chainLength = 0
	ms.vertexLayout = metadata.VertexLayout{}
	ms.initialized = false
	return nil
}

func (ms *MeshSystem) IsInitialized() bool {
	return ms.initialized
}

// Capacity is the number of slots in the pool, 0 when uninitialized.
func (ms *MeshSystem) Capacity() uint32 {
	return uint32(len(ms.meshes))
}

// Count is the number of slots currently in use.
func (ms *MeshSystem) Count() uint32 {
	return ms.count
}

func (ms *MeshSystem) ChainLength() uint32 {
	return ms.chainLength
}

// VertexLayout describes the Vertex3D binding the pipeline consumes.
func (ms *MeshSystem) VertexLayout() metadata.VertexLayout {
	return metadata.NewVertex3DLayout()
}

func (ms *MeshSystem) GetPipeline() renderer.Pipeline {
	if ms.pipeline == nil {
		core.LogError("mesh pipeline is not loaded")
		return nil
	}
	return ms.pipeline
}

func (ms *MeshSystem) DefaultTexture() *metadata.Texture {
	return ms.defaultTexture
}

/**
 * @brief Hands out the first free slot with a reference count of 1 and a
 * fresh generation.
 */
func (ms *MeshSystem) Acquire() (*metadata.Mesh, error) {
	if !ms.initialized {
		return nil, core.ErrNotInitialized
	}
	for i := range ms.meshes {
		mesh := &ms.meshes[i]
		if mesh.ReferenceCount > 0 {
			continue
		}
		*mesh = metadata.Mesh{
			ID:             uint32(i),
			Generation:     mesh.Generation + 1,
			ReferenceCount: 1,
		}
		ms.count++
		return mesh, nil
	}
	err := fmt.Errorf("mesh system is full (%d meshes): %w", len(ms.meshes), core.ErrPoolExhausted)
	core.LogWarn(err.Error())
	return nil, err
}

// FindByFilename returns the in-use mesh loaded from filename, without touching its reference count.
func (ms *MeshSystem) FindByFilename(filename string) *metadata.Mesh {
	for i := range ms.meshes {
		if ms.meshes[i].ReferenceCount > 0 && ms.meshes[i].Filename == filename {
			return &ms.meshes[i]
		}
	}
	return nil
}

/**
 * @brief Parses filename and uploads its geometry into a new mesh. On any
 * failure no slot stays consumed and no GPU buffer stays alive.
 */
func (ms *MeshSystem) Load(filename string) (*metadata.Mesh, error) {
	if !ms.initialized {
		core.LogError("cannot load mesh '%s', mesh system not initialized", filename)
		return nil, core.ErrNotInitialized
	}
	if filename == "" {
		return nil, fmt.Errorf("mesh filename cannot be empty: %w", core.ErrAssetNotFound)
	}

	geometry, err := ms.geometry.LoadGeometry(filename)
	if err != nil {
		err = fmt.Errorf("failed to parse mesh file '%s': %w", filename, err)
		core.LogError(err.Error())
		return nil, err
	}
	return ms.upload(filename, geometry)
}

/**
 * @brief Parses filename on a job worker and uploads it once the job
 * system delivers the result. done runs on the goroutine calling
 * JobSystem.Update.
 */
func (ms *MeshSystem) LoadAsync(jobs JobSubmitter, filename string, done func(mesh *metadata.Mesh, err error)) error {
	if !ms.initialized {
		return core.ErrNotInitialized
	}
	if filename == "" {
		return fmt.Errorf("mesh filename cannot be empty: %w", core.ErrAssetNotFound)
	}
	return jobs.Submit(JobTask{
		Name: "mesh:" + filename,
		Run: func() (any, error) {
			return ms.geometry.LoadGeometry(filename)
		},
		OnComplete: func(result any) {
			mesh, err := ms.upload(filename, result.(*metadata.GeometryData))
			if done != nil {
				done(mesh, err)
			}
		},
		OnFailure: func(err error) {
			if done != nil {
				done(nil, fmt.Errorf("failed to parse mesh file '%s': %w", filename, err))
			}
		},
	})
}

func (ms *MeshSystem) upload(filename string, geometry *metadata.GeometryData) (*metadata.Mesh, error) {
	mesh, err := ms.Acquire()
	if err != nil {
		core.LogWarn("failed to allocate mesh for file '%s'", filename)
		return nil, err
	}
	mesh.Filename = filename

	primitive := &metadata.MeshPrimitive{Geometry: geometry}
	if err := ms.buildVertexBuffer(primitive); err != nil {
		return nil, ms.abortLoad(mesh, primitive, err)
	}
	if err := ms.buildFaceBuffer(primitive); err != nil {
		return nil, ms.abortLoad(mesh, primitive, err)
	}
	mesh.Primitives = append(mesh.Primitives, primitive)

	core.LogDebug("mesh '%s' loaded into slot %d (%d vertices, %d faces)", filename, mesh.ID, primitive.VertexCount, primitive.FaceCount)
	return mesh, nil
}

func (ms *MeshSystem) abortLoad(mesh *metadata.Mesh, primitive *metadata.MeshPrimitive, err error) error {
	err = fmt.Errorf("failed to upload mesh '%s': %w", mesh.Filename, err)
	core.LogError(err.Error())
	ms.FreePrimitive(primitive)
	ms.Release(mesh)
	return err
}

/**
 * @brief Drops one reference to mesh. When the count reaches 0 the GPU
 * buffers are destroyed and the slot becomes free again.
 */
func (ms *MeshSystem) Release(mesh *metadata.Mesh) {
	if mesh == nil {
		return
	}
	if !ms.owns(mesh) {
		core.LogWarn("release of mesh '%s' not owned by the mesh system, nothing was done", mesh.Filename)
		return
	}
	if mesh.ReferenceCount == 0 {
		core.LogWarn("release of free mesh slot %d, nothing was done", mesh.ID)
		return
	}
	mesh.ReferenceCount--
	if mesh.ReferenceCount > 0 {
		return
	}
	ms.freePrimitives(mesh)
	*mesh = metadata.Mesh{ID: mesh.ID, Generation: mesh.Generation}
	ms.count--
}

// AddRef takes one more reference to an in-use mesh, so it survives one more Release.
func (ms *MeshSystem) AddRef(mesh *metadata.Mesh) error {
	if mesh == nil || !ms.owns(mesh) {
		err := errors.New("cannot reference a mesh not owned by the mesh system")
		core.LogWarn(err.Error())
		return err
	}
	if mesh.ReferenceCount == 0 {
		err := fmt.Errorf("cannot reference free mesh slot %d", mesh.ID)
		core.LogWarn(err.Error())
		return err
	}
	mesh.ReferenceCount++
	return nil
}

func (ms *MeshSystem) owns(mesh *metadata.Mesh) bool {
	return int(mesh.ID) < len(ms.meshes) && &ms.meshes[mesh.ID] == mesh
}

func (ms *MeshSystem) freePrimitives(mesh *metadata.Mesh) {
	for _, primitive := range mesh.Primitives {
		ms.FreePrimitive(primitive)
	}
	mesh.Primitives = nil
}

/**
 * @brief Queues one draw of mesh with the current camera matrices. A nil
 * texture draws with the default texture.
 */
func (ms *MeshSystem) Draw(mesh *metadata.Mesh, model math.Mat4, color math.Color, texture *metadata.Texture) {
	if mesh == nil || ms.pipeline == nil {
		return
	}
	ubo := metadata.MeshUBO{
		Model: model,
		View:  ms.camera.GetView(),
		Proj:  ms.camera.GetProjection(),
		Color: color.ToVec4(),
	}
	ms.QueueRender(mesh, ms.pipeline, ubo.Bytes(), texture)
}

// QueueRender submits every primitive of mesh to pipeline with the given uniform block.
func (ms *MeshSystem) QueueRender(mesh *metadata.Mesh, pipeline renderer.Pipeline, uniformData []byte, texture *metadata.Texture) {
	if mesh == nil || pipeline == nil || len(uniformData) == 0 {
		return
	}
	for _, primitive := range mesh.Primitives {
		ms.QueuePrimitive(primitive, pipeline, uniformData, texture)
	}
}

func (ms *MeshSystem) QueuePrimitive(primitive *metadata.MeshPrimitive, pipeline renderer.Pipeline, uniformData []byte, texture *metadata.Texture) {
	if primitive == nil || pipeline == nil || len(uniformData) == 0 {
		return
	}
	if texture == nil {
		texture = ms.defaultTexture
	}
	if err := pipeline.QueueRender(primitive.VertexBuffer, primitive.VertexCount, primitive.FaceBuffer, uniformData, texture); err != nil {
		core.LogError("failed to queue mesh primitive: %s", err.Error())
	}
}
