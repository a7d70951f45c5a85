package kdp

import (
	"errors"
	"math"
	"testing"
)

func TestParseUint(t *testing.T) {
	cases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"1001", 1001, false},
		{"1001.0", 1001, false},
		{"-1", 0, true},
		{"1.5", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := parseUint(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("parseUint(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if got != c.want {
			t.Errorf("parseUint(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDecodeParameterList(t *testing.T) {
	ret := decodeReturn(t, "get_measured_parameter_list", `<return>
<item><id>5</id><short_name>SYN packets</short_name><description>SYN</description><unit_type_name>pps</unit_type_name><direction>1</direction><parent_id xsi:nil="true"/><check_id>12</check_id></item>
<item><id>6</id><short_name>SYN rating</short_name><direction>-1</direction></item>
</return>`)
	defs, err := decodeParameterList(ret)
	if err != nil {
		t.Fatalf("decodeParameterList() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if d := defs[0]; d.ID != 5 || d.ShortName != "SYN packets" || d.Units != "pps" || d.Direction != 1 || d.ParentID != 0 || d.CheckID != 12 {
		t.Errorf("unexpected first definition: %+v", d)
	}
	if defs[1].Direction != -1 {
		t.Errorf("direction = %d, want -1", defs[1].Direction)
	}
}

func TestDecodeParameterList_MissingShortName(t *testing.T) {
	ret := decodeReturn(t, "get_measured_parameter_list", `<return><item><id>5</id><direction>1</direction></item></return>`)
	_, err := decodeParameterList(ret)
	var shape *ShapeError
	if !errors.As(err, &shape) || shape.Field != "short_name" {
		t.Fatalf("err = %v, want ShapeError on short_name", err)
	}
	if Kind(err) != KindShape {
		t.Errorf("Kind() = %q, want shape", Kind(err))
	}
}

func TestDecodeParameterData_BadNumber(t *testing.T) {
	ret := decodeReturn(t, "get_measured_parameter_data", `<return><item><unit_check_id>5</unit_check_id><type>0</type><value>lots</value></item></return>`)
	_, err := decodeParameterData(ret)
	var shape *ShapeError
	if !errors.As(err, &shape) || shape.Field != "value" {
		t.Fatalf("err = %v, want ShapeError on value", err)
	}
}

func TestDecodeParameterData_MissingTypeIsUnknown(t *testing.T) {
	ret := decodeReturn(t, "get_measured_parameter_data", `<return>
<item><unit_check_id>5</unit_check_id><type>2</type><value>3</value></item>
<item><unit_check_id>5</unit_check_id><type xsi:nil="true"/><value>4</value></item>
<item><unit_check_id>5</unit_check_id><value>5</value></item>
</return>`)
	points, err := decodeParameterData(ret)
	if err != nil {
		t.Fatalf("decodeParameterData() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	for i, want := range []int{2, TypeUnknown, TypeUnknown} {
		if points[i].Type != want {
			t.Errorf("point %d type = %d, want %d", i, points[i].Type, want)
		}
	}
}

func TestDecodeAttacks_MissingPeaksAreNaN(t *testing.T) {
	ret := decodeReturn(t, "attack_active_list", `<return><item><attack_id>1</attack_id><attack_type>UDP flood</attack_type><resource_id>9</resource_id></item></return>`)
	attacks, err := decodeAttacks(ret)
	if err != nil {
		t.Fatalf("decodeAttacks() error = %v", err)
	}
	a := attacks[0]
	if !math.IsNaN(a.MaxBPS) || !math.IsNaN(a.MaxPPS) || !math.IsNaN(a.MaxRPS) {
		t.Errorf("absent peaks should be NaN: %+v", a)
	}
}

func TestDecodeIPBlocks(t *testing.T) {
	ret := decodeReturn(t, "get_resource_new_ip_blocks", `<return>
<item><timestamp>2024-03-01 11:58:00</timestamp><new_ip_blocks>3</new_ip_blocks></item>
<item><timestamp>2024-03-01 11:59:00</timestamp><new_ip_blocks>0</new_ip_blocks></item>
</return>`)
	blocks, err := decodeIPBlocks(ret)
	if err != nil {
		t.Fatalf("decodeIPBlocks() error = %v", err)
	}
	if len(blocks) != 2 || blocks[0].NewIPBlocks != 3 || blocks[1].Timestamp != "2024-03-01 11:59:00" {
		t.Errorf("unexpected blocks: %+v", blocks)
	}
}
