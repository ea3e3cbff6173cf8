package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами блока
type Vec3 struct {
	X int
	Y int
	Z int
}

// Направления сдвига блоков (грани куба)
var (
	Up    = Vec3{Y: 1}
	Down  = Vec3{Y: -1}
	North = Vec3{Z: -1}
	South = Vec3{Z: 1}
	East  = Vec3{X: 1}
	West  = Vec3{X: -1}
)

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// ChunkX возвращает X координату чанка (деление на 16 с округлением вниз)
func (v Vec3) ChunkX() int {
	return v.X >> 4
}

// ChunkZ возвращает Z координату чанка
func (v Vec3) ChunkZ() int {
	return v.Z >> 4
}

// SubChunkY возвращает индекс секции чанка по высоте
func (v Vec3) SubChunkY() int {
	return v.Y >> 4
}

// Local возвращает координаты внутри секции 16x16x16
func (v Vec3) Local() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF}
}

// FromSection собирает мировые координаты из координат чанка, секции и локальной позиции
func FromSection(chunkX, subChunkY, chunkZ int, local Vec3) Vec3 {
	return Vec3{
		X: chunkX<<4 | local.X&0xF,
		Y: subChunkY<<4 | local.Y&0xF,
		Z: chunkZ<<4 | local.Z&0xF,
	}
}

func (v Vec3) String() string {
	return fmt.Sprintf("%d, %d, %d", v.X, v.Y, v.Z)
}
