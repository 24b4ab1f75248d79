package vulkan

import (
	"sync"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/kiln-engine/kiln/backend"
)

func TestResultIsSuccess(t *testing.T) {
	cases := []struct {
		result vk.Result
		want   bool
	}{
		{vk.Success, true},
		{vk.NotReady, false},
		{vk.ErrorDeviceLost, false},
		{vk.Suboptimal, false},
	}
	for _, c := range cases {
		if got := resultIsSuccess(c.result); got != c.want {
			t.Errorf("resultIsSuccess(%v) = %v, want %v", c.result, got, c.want)
		}
	}
}

func TestResultString(t *testing.T) {
	if got := resultString(vk.ErrorDeviceLost); got != "VK_ERROR_DEVICE_LOST" {
		t.Errorf("resultString(ErrorDeviceLost) = %q", got)
	}
	if got := resultString(vk.Result(9999)); got != "VK_ERROR_UNKNOWN" {
		t.Errorf("resultString(unknown) = %q, want VK_ERROR_UNKNOWN", got)
	}
}

func TestSafeString(t *testing.T) {
	if got := safeString("kiln"); got != "kiln\x00" {
		t.Errorf("safeString(%q) = %q", "kiln", got)
	}
	already := "kiln\x00"
	if got := safeString(already); got != already {
		t.Errorf("safeString should not double-terminate: got %q", got)
	}
}

func TestSafeStrings(t *testing.T) {
	got := safeStrings([]string{"a", "b"})
	want := []string{"a\x00", "b\x00"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("safeStrings()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFirstZero(t *testing.T) {
	cases := []struct {
		arr  []byte
		want int
	}{
		{[]byte{'a', 'b', 0, 'c'}, 2},
		{[]byte{'a', 'b'}, 2},
		{[]byte{}, 0},
	}
	for _, c := range cases {
		if got := firstZero(c.arr); got != c.want {
			t.Errorf("firstZero(%v) = %d, want %d", c.arr, got, c.want)
		}
	}
}

func TestClampU32(t *testing.T) {
	cases := []struct{ v, lo, hi, want uint32 }{
		{5, 0, 10, 5},
		{0, 2, 10, 2},
		{20, 2, 10, 10},
	}
	for _, c := range cases {
		if got := clampU32(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("clampU32(%d, %d, %d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestSSBOBindingCountFor(t *testing.T) {
	if got := ssboBindingCountFor(backend.LayoutDefaultUI); got != 1 {
		t.Errorf("ssboBindingCountFor(LayoutDefaultUI) = %d, want 1", got)
	}
	if got := ssboBindingCountFor(backend.LayoutZeroCopy); got != maxSSBOBindings {
		t.Errorf("ssboBindingCountFor(LayoutZeroCopy) = %d, want %d", got, maxSSBOBindings)
	}
	if got := ssboBindingCountFor(backend.LayoutCompute); got != maxSSBOBindings {
		t.Errorf("ssboBindingCountFor(LayoutCompute) = %d, want %d", got, maxSSBOBindings)
	}
}

func TestCompileShaderRejectsNonSPIRV(t *testing.T) {
	if _, err := compileShader([]byte("not spir-v"), ShaderStageNameVertex); err == nil {
		t.Fatalf("compileShader should reject a non-SPIR-V payload")
	}
	if _, err := compileShader([]byte{1, 2}, ShaderStageNameFragment); err == nil {
		t.Fatalf("compileShader should reject a too-short payload")
	}
}

func TestCompileShaderPassesThroughValidSPIRV(t *testing.T) {
	src := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0}
	out, err := compileShader(src, ShaderStageNameCompute)
	if err != nil {
		t.Fatalf("compileShader: %v", err)
	}
	if len(out) != len(src) {
		t.Fatalf("compileShader changed length: got %d, want %d", len(out), len(src))
	}
	out[0] = 0xff
	if src[0] == 0xff {
		t.Fatalf("compileShader must return a copy, not alias src")
	}
}

func TestSliceUint32RoundTrip(t *testing.T) {
	in := []byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00}
	out := sliceUint32(in)
	if len(out) != 2 || out[0] != spirvMagic || out[1] != 1 {
		t.Fatalf("sliceUint32(%v) = %v, want [%d 1]", in, out, spirvMagic)
	}
}

func TestLockPoolSerializesSameGroup(t *testing.T) {
	p := newLockPool()
	var mu sync.Mutex
	active := 0
	maxActive := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.safeCall(lockQueue, func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Fatalf("safeCall allowed %d concurrent callers in the same lock group, want 1", maxActive)
	}
}

func TestLockPoolGroupsAreIndependent(t *testing.T) {
	p := newLockPool()
	a := p.group(lockQueue)
	b := p.group(lockDevice)
	if a == b {
		t.Fatalf("distinct lock groups should return distinct mutexes")
	}
	if p.group(lockQueue) != a {
		t.Fatalf("group() should return the same mutex for the same group on repeat calls")
	}
}

func TestWithFatalHookInterceptsFatalVk(t *testing.T) {
	var captured string
	WithFatalHook(func(msg string) { captured = msg })
	defer WithFatalHook(nil)

	err := fatalVk(nil, "create instance", vk.ErrorInitializationFailed)
	if err == nil {
		t.Fatalf("fatalVk should always return a non-nil error")
	}
	if captured == "" {
		t.Fatalf("fatalVk did not invoke the installed fatal hook")
	}
}

type fakeLogger struct {
	errors []string
}

func (f *fakeLogger) LogInfo(string, ...interface{})  {}
func (f *fakeLogger) LogWarn(string, ...interface{})  {}
func (f *fakeLogger) LogError(msg string, args ...interface{}) {
	f.errors = append(f.errors, msg)
}

func TestFatalVkFallsBackToLogError(t *testing.T) {
	WithFatalHook(nil)
	logger := &fakeLogger{}
	if err := fatalVk(logger, "submit", vk.ErrorDeviceLost); err == nil {
		t.Fatalf("fatalVk should always return a non-nil error")
	}
	if len(logger.errors) != 1 {
		t.Fatalf("fatalVk should fall back to LogError when no hook or LogFatal is available, got %v", logger.errors)
	}
}

func TestTextureUsageAndAspect(t *testing.T) {
	if _, _, aspect := textureUsageAndAspect(backend.TextureFormatD32); aspect != vk.ImageAspectFlags(vk.ImageAspectDepthBit) {
		t.Errorf("TextureFormatD32 should use the depth aspect")
	}
	if _, _, aspect := textureUsageAndAspect(backend.TextureFormatRGBA8); aspect != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
		t.Errorf("TextureFormatRGBA8 should use the color aspect")
	}
	fmtV, _, _ := textureUsageAndAspect(backend.TextureFormatRGBA16F)
	if fmtV != vk.FormatR16g16b16a16Sfloat {
		t.Errorf("TextureFormatRGBA16F should map to FormatR16g16b16a16Sfloat, got %v", fmtV)
	}
}
