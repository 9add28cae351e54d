package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// FloorDiv делит с округлением вниз: FloorDiv(-1, 16) == -1.
func FloorDiv(a, n int) int {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

// Mod возвращает неотрицательный остаток: Mod(-1, 16) == 15.
func Mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// ToChunk переводит мировые координаты в координаты чанка со стороной n
func (v Vec3) ToChunk(n int) Vec3 {
	return Vec3{X: FloorDiv(v.X, n), Y: FloorDiv(v.Y, n), Z: FloorDiv(v.Z, n)}
}

// LocalInChunk возвращает локальные координаты внутри чанка со стороной n
func (v Vec3) LocalInChunk(n int) Vec3 {
	return Vec3{X: Mod(v.X, n), Y: Mod(v.Y, n), Z: Mod(v.Z, n)}
}

// ToVec2 отбрасывает вертикальную ось (X, Z → X, Y)
func (v Vec3) ToVec2() Vec2 {
	return Vec2{X: v.X, Y: v.Z}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// ToFloat переводит в вещественный вектор
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}
