package toolbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// AF32 is a dense row-major float32 tensor, used only to move model
// parameters in and out of safetensors files.
type AF32 struct {
	V     []float32
	Shape []int
}

func MakeAF32(shape ...int) *AF32 {
	for _, s := range shape {
		if s < 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
	}
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &AF32{
		V:     make([]float32, size),
		Shape: shape,
	}
}

func MakeScalarAF32(scalar float32) *AF32 {
	return &AF32{
		V:     []float32{scalar},
		Shape: []int{1},
	}
}

func (a *AF32) At1(idx int) float32 {
	return a.V[idx]
}

func (a *AF32) At2(idx0, idx1 int) float32 {
	if len(a.Shape) != 2 {
		panic("At2() invalid for len(shape) != 2")
	}
	return a.V[idx0*a.Shape[1]+idx1]
}

func (a *AF32) Set1(idx int, v float32) {
	a.V[idx] = v
}

func (a *AF32) Set2(idx0, idx1 int, v float32) {
	if len(a.Shape) != 2 {
		panic("Set2() invalid for len(shape) != 2")
	}
	a.V[idx0*a.Shape[1]+idx1] = v
}

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

func WriteSafeTensors(w io.Writer, tensors map[string]*AF32) error {
	header := map[string]SafeTensorInfo{}
	dataOffset := 0

	keys := []string{}
	for k := range tensors {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		begin := dataOffset
		dataOffset += len(tensors[k].V) * 4
		end := dataOffset

		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       tensors[k].Shape,
			DataOffsets: []int{begin, end},
		}
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	for _, k := range keys {
		if err := binary.Write(w, binary.LittleEndian, tensors[k].V); err != nil {
			return fmt.Errorf("while writing %s values: %w", k, err)
		}
	}

	return nil
}

// ReadSafeTensors needs r to also implement io.ReaderAt and io.Seeker (an
// *os.File or a *bytes.Reader both do).
func ReadSafeTensors(r io.Reader) (map[string]*AF32, error) {
	rat, ok := r.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("reader %T does not support ReadAt", r)
	}
	seeker, ok := r.(io.Seeker)
	if !ok {
		return nil, fmt.Errorf("reader %T does not support Seek", r)
	}
	size, err := streamSize(seeker)
	if err != nil {
		return nil, fmt.Errorf("while sizing input: %w", err)
	}

	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLen > uint64(size-8) {
		return nil, fmt.Errorf("header length %d exceeds file size %d", headerLen, size)
	}
	dataLen := size - 8 - int64(headerLen)

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	header := map[string]SafeTensorInfo{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	tensors := map[string]*AF32{}
	for k, hdr := range header {
		if hdr.DType != "F32" {
			return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
		}
		if len(hdr.Shape) > 3 {
			return nil, fmt.Errorf("unsupported shape %v", hdr.Shape)
		}
		if len(hdr.DataOffsets) != 2 || hdr.DataOffsets[0] < 0 || hdr.DataOffsets[1] < hdr.DataOffsets[0] || int64(hdr.DataOffsets[1]) > dataLen {
			return nil, fmt.Errorf("bad data offsets %v for %s", hdr.DataOffsets, k)
		}

		n := 1
		for _, s := range hdr.Shape {
			if s < 0 {
				return nil, fmt.Errorf("bad shape %v", hdr.Shape)
			}
			if s > 0 && n > (hdr.DataOffsets[1]-hdr.DataOffsets[0])/4/s {
				return nil, fmt.Errorf("shape %v too large for data offsets %v of %s", hdr.Shape, hdr.DataOffsets, k)
			}
			n *= s
		}
		if hdr.DataOffsets[1]-hdr.DataOffsets[0] != n*4 {
			return nil, fmt.Errorf("data offsets %v do not match shape %v for %s", hdr.DataOffsets, hdr.Shape, k)
		}

		tensor := &AF32{
			V:     make([]float32, n),
			Shape: hdr.Shape,
		}
		section := io.NewSectionReader(rat, 8+int64(headerLen)+int64(hdr.DataOffsets[0]), int64(n*4))
		if err := binary.Read(section, binary.LittleEndian, tensor.V); err != nil {
			return nil, fmt.Errorf("while reading bytes for %s: %w", k, err)
		}

		tensors[k] = tensor
	}

	return tensors, nil
}

// streamSize returns the number of bytes left in s and leaves its offset
// unchanged.
func streamSize(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	if end-cur < 8 {
		return 0, fmt.Errorf("%d bytes is too short for a safetensors file", end-cur)
	}
	return end - cur, nil
}

func lookupTensor(tensors map[string]*AF32, key string, wantShape ...int) (*AF32, error) {
	tensor, ok := tensors[key]
	if !ok {
		return nil, fmt.Errorf("no entry for %s", key)
	}
	if !slices.Equal(tensor.Shape, wantShape) {
		return nil, fmt.Errorf("wrong shape for %s; got %v want %v", key, tensor.Shape, wantShape)
	}
	return tensor, nil
}

func tensorShape(tensors map[string]*AF32, key string) ([]int, error) {
	tensor, ok := tensors[key]
	if !ok {
		return nil, fmt.Errorf("no entry for %s", key)
	}
	return tensor.Shape, nil
}

// DumpTensors stores the unit as "<prefix>.weights" (shape {inputSize}) and
// "<prefix>.bias" (shape {1}).
func (u *Unit) DumpTensors(prefix string, tensors map[string]*AF32) {
	w := MakeAF32(len(u.W))
	copy(w.V, u.W)
	tensors[prefix+".weights"] = w
	tensors[prefix+".bias"] = MakeScalarAF32(u.B)
}

// LoadTensors reads back what DumpTensors wrote.  The unit's input size is
// taken from the stored tensor.
func (u *Unit) LoadTensors(prefix string, tensors map[string]*AF32) error {
	shape, err := tensorShape(tensors, prefix+".weights")
	if err != nil {
		return err
	}
	if len(shape) != 1 {
		return fmt.Errorf("wrong rank for %s.weights; got %v", prefix, shape)
	}
	w, err := lookupTensor(tensors, prefix+".weights", shape[0])
	if err != nil {
		return err
	}
	b, err := lookupTensor(tensors, prefix+".bias", 1)
	if err != nil {
		return err
	}

	u.W = slices.Clone(w.V)
	u.B = b.At1(0)
	u.Last = nil
	return nil
}

func (s *SLP) DumpTensors(tensors map[string]*AF32) {
	hw := MakeAF32(len(s.Hidden), s.NInputs)
	hb := MakeAF32(len(s.Hidden))
	for i := range s.Hidden {
		for j := 0; j < s.NInputs; j++ {
			hw.Set2(i, j, s.Hidden[i].W[j])
		}
		hb.Set1(i, s.Hidden[i].B)
	}
	tensors["slp.hidden.weights"] = hw
	tensors["slp.hidden.biases"] = hb
	s.Output.DumpTensors("slp.output", tensors)
}

// SLPFromTensors rebuilds an SLP written by DumpTensors.
func SLPFromTensors(tensors map[string]*AF32, activation ActivationType) (*SLP, error) {
	shape, err := tensorShape(tensors, "slp.hidden.weights")
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("wrong rank for slp.hidden.weights; got %v", shape)
	}
	hiddenSize, inputSize := shape[0], shape[1]

	hw, err := lookupTensor(tensors, "slp.hidden.weights", hiddenSize, inputSize)
	if err != nil {
		return nil, err
	}
	hb, err := lookupTensor(tensors, "slp.hidden.biases", hiddenSize)
	if err != nil {
		return nil, err
	}

	hidden := make([]Unit, hiddenSize)
	for i := range hidden {
		w := make([]float32, inputSize)
		for j := range w {
			w[j] = hw.At2(i, j)
		}
		hidden[i] = NewUnit(w, hb.At1(i), activation)
	}

	output := Unit{Activation: activation}
	if err := output.LoadTensors("slp.output", tensors); err != nil {
		return nil, err
	}

	return NewSLP(hidden, output)
}

func (m *MLP) DumpTensors(tensors map[string]*AF32) {
	tensors["mlp.layers"] = MakeScalarAF32(float32(len(m.Hidden)))
	for l := range m.Hidden {
		inputSize := m.Hidden[l][0].InputSize()
		w := MakeAF32(len(m.Hidden[l]), inputSize)
		b := MakeAF32(len(m.Hidden[l]))
		for i := range m.Hidden[l] {
			for j := 0; j < inputSize; j++ {
				w.Set2(i, j, m.Hidden[l][i].W[j])
			}
			b.Set1(i, m.Hidden[l][i].B)
		}
		tensors[fmt.Sprintf("mlp.%d.weights", l)] = w
		tensors[fmt.Sprintf("mlp.%d.biases", l)] = b
	}

	lastSize := len(m.Hidden[len(m.Hidden)-1])
	ow := MakeAF32(len(m.Output), lastSize)
	ob := MakeAF32(len(m.Output))
	for k := range m.Output {
		for j := 0; j < lastSize; j++ {
			ow.Set2(k, j, m.Output[k].W[j])
		}
		ob.Set1(k, m.Output[k].B)
	}
	tensors["mlp.output.weights"] = ow
	tensors["mlp.output.biases"] = ob
}

// MLPFromTensors rebuilds an MLP written by DumpTensors.
func MLPFromTensors(tensors map[string]*AF32, hiddenActivation, outputActivation ActivationType) (*MLP, error) {
	layers, err := lookupTensor(tensors, "mlp.layers", 1)
	if err != nil {
		return nil, err
	}
	stored := 0
	for {
		if _, ok := tensors[fmt.Sprintf("mlp.%d.weights", stored)]; !ok {
			break
		}
		stored++
	}
	nLayers := layers.At1(0)
	if !(nLayers >= 1 && nLayers <= float32(stored)) || float32(int(nLayers)) != nLayers {
		return nil, fmt.Errorf("%w: mlp.layers is %v, file holds %d hidden layers", ErrStructuralInvalidity, nLayers, stored)
	}

	readLayer := func(wKey, bKey string, activation ActivationType) ([]Unit, error) {
		shape, err := tensorShape(tensors, wKey)
		if err != nil {
			return nil, err
		}
		if len(shape) != 2 {
			return nil, fmt.Errorf("wrong rank for %s; got %v", wKey, shape)
		}
		b, err := lookupTensor(tensors, bKey, shape[0])
		if err != nil {
			return nil, err
		}
		w := tensors[wKey]

		units := make([]Unit, shape[0])
		for i := range units {
			row := make([]float32, shape[1])
			for j := range row {
				row[j] = w.At2(i, j)
			}
			units[i] = NewUnit(row, b.At1(i), activation)
		}
		return units, nil
	}

	hidden := make([][]Unit, int(nLayers))
	for l := range hidden {
		hidden[l], err = readLayer(fmt.Sprintf("mlp.%d.weights", l), fmt.Sprintf("mlp.%d.biases", l), hiddenActivation)
		if err != nil {
			return nil, err
		}
	}
	output, err := readLayer("mlp.output.weights", "mlp.output.biases", outputActivation)
	if err != nil {
		return nil, err
	}

	return NewMLP(hidden, output)
}
