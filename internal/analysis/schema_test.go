package analysis

import (
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for SchemaResolver:
// - A schema without a base schema resolves to its local fields in order
// - B(A) merges A's fields first; shared names keep B's declaration and position
// - A(B), B(A) terminates with local fields only, Cyclic set and cycle warnings
// - Nested schema fields, many=True and child= set Nested, List and Ref
// - Keyword flags: required, read_only, default, write_only, allow_null, help_text
// - ModelSerializer Meta.fields "__all__", lists, exclude and read_only_fields
// - Pydantic-style annotations with Optional and List wrappers
// - Classes with only field declarations are schemas; handlers and models are not
// - Unknown bases of a schema are reported as unresolved references

const serializersHeader = "from rest_framework import serializers\n\n"

func TestSchema_LocalFieldsInOrder(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/serializers.py": serializersHeader + `class ItemOut(serializers.Serializer):
    id = serializers.IntegerField(read_only=True)
    name = serializers.CharField()
    price = serializers.DecimalField(max_digits=6, decimal_places=2)
`,
	})

	s := findSchema(t, result, "app.serializers.ItemOut")
	assert.Equal(t, []string{"id", "name", "price"}, fieldNames(s.Fields))
	assert.Equal(t, s.OwnFields, s.Fields)
	assert.Empty(t, s.Base)
	assert.False(t, s.Cyclic)
}

func TestSchema_InheritanceMerge(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/base.py": serializersHeader + `class A(serializers.Serializer):
    id = serializers.IntegerField()
    name = serializers.CharField()
    price = serializers.FloatField()
`,
		"app/derived.py": serializersHeader + `from .base import A


class B(A):
    name = serializers.CharField(required=False, help_text="Display name")
    extra = serializers.BooleanField()
`,
	})

	b := findSchema(t, result, "app.derived.B")
	assert.Equal(t, "app.base.A", b.Base)
	assert.Equal(t, []string{"id", "price", "name", "extra"}, fieldNames(b.Fields))

	name, ok := b.Field("name")
	require.True(t, ok)
	assert.False(t, name.Required, "B's declaration wins")
	assert.Equal(t, "Display name", name.HelpText)
}

func TestSchema_CyclicInheritance(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/cycle.py": serializersHeader + `class A(B):
    a = serializers.CharField()


class B(A):
    b = serializers.CharField()
`,
	})

	a := findSchema(t, result, "app.cycle.A")
	b := findSchema(t, result, "app.cycle.B")
	assert.True(t, a.Cyclic)
	assert.True(t, b.Cyclic)
	assert.Equal(t, []string{"a"}, fieldNames(a.Fields))
	assert.Equal(t, []string{"b"}, fieldNames(b.Fields))
	assert.Len(t, warningsOf(collector, diag.KindCycle), 2)
}

func TestSchema_SelfInheritance(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/self.py": serializersHeader + `class Loop(Loop):
    x = serializers.CharField()
`,
	})

	s := findSchema(t, result, "app.self.Loop")
	assert.True(t, s.Cyclic)
	assert.Equal(t, []string{"x"}, fieldNames(s.Fields))
	assert.Len(t, warningsOf(collector, diag.KindCycle), 1)
}

func TestSchema_NestedFields(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/serializers.py": serializersHeader + `class TagOut(serializers.Serializer):
    label = serializers.CharField()


class ItemOut(serializers.Serializer):
    tag = TagOut()
    tags = TagOut(many=True, read_only=True)
    labels = serializers.ListField(child=TagOut())
    codes = serializers.ListField(child=serializers.CharField())
    owner = serializers.PrimaryKeyRelatedField(queryset=None, allow_null=True)
    secret = serializers.CharField(write_only=True, default="")
`,
	})

	s := findSchema(t, result, "app.serializers.ItemOut")
	require.Len(t, s.Fields, 6)

	tag := s.Fields[0]
	assert.True(t, tag.Nested)
	assert.False(t, tag.List)
	assert.Equal(t, "app.serializers.TagOut", tag.Ref)
	assert.True(t, tag.Required)

	tags := s.Fields[1]
	assert.True(t, tags.Nested)
	assert.True(t, tags.List)
	assert.True(t, tags.ReadOnly)
	assert.False(t, tags.Required)

	labels := s.Fields[2]
	assert.True(t, labels.Nested)
	assert.True(t, labels.List)
	assert.Equal(t, "app.serializers.TagOut", labels.Ref)

	codes := s.Fields[3]
	assert.False(t, codes.Nested)
	assert.True(t, codes.List)
	assert.Empty(t, codes.Ref)

	assert.True(t, s.Fields[4].Nullable)
	assert.Equal(t, "PrimaryKeyRelatedField", s.Fields[4].Type)

	secret := s.Fields[5]
	assert.True(t, secret.WriteOnly)
	assert.False(t, secret.Required)
}

func TestSchema_ModelSerializerMeta(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"shop/models.py": `from django.db import models


class Stamped(models.Model):
    created = models.DateTimeField(auto_now_add=True)


class Item(Stamped):
    name = models.CharField(max_length=50)
    price = models.DecimalField(max_digits=6, decimal_places=2)
    notes = models.TextField(blank=True, null=True)
`,
		"shop/serializers.py": serializersHeader + `from .models import Item


class ItemAll(serializers.ModelSerializer):
    price = serializers.FloatField()

    class Meta:
        model = Item
        fields = "__all__"
        read_only_fields = ["created"]


class ItemSome(serializers.ModelSerializer):
    class Meta:
        model = Item
        fields = ["notes", "name", "missing"]


class ItemExclude(serializers.ModelSerializer):
    class Meta:
        model = Item
        exclude = ["notes"]


class Broken(serializers.ModelSerializer):
    class Meta:
        model = Unknown
        fields = "__all__"
`,
	})

	all := findSchema(t, result, "shop.serializers.ItemAll")
	assert.Equal(t, "shop.models.Item", all.Model)
	assert.Equal(t, []string{"price", "created", "name", "notes"}, fieldNames(all.Fields))
	price, _ := all.Field("price")
	assert.Equal(t, "FloatField", price.Type, "declared field wins over the model field")
	created, _ := all.Field("created")
	assert.True(t, created.ReadOnly)
	assert.False(t, created.Required)
	notes, _ := all.Field("notes")
	assert.False(t, notes.Required)
	assert.True(t, notes.Nullable)

	some := findSchema(t, result, "shop.serializers.ItemSome")
	assert.Equal(t, []string{"notes", "name"}, fieldNames(some.Fields))

	exclude := findSchema(t, result, "shop.serializers.ItemExclude")
	assert.Equal(t, []string{"created", "name", "price"}, fieldNames(exclude.Fields))

	broken := findSchema(t, result, "shop.serializers.Broken")
	assert.Empty(t, broken.Fields)
	unresolved := warningsOf(collector, diag.KindUnresolved)
	require.NotEmpty(t, unresolved)
	assert.Contains(t, unresolved[len(unresolved)-1].Message, "Unknown")

	for _, s := range result.Schemas {
		assert.NotEqual(t, "shop.models.Item", s.Name, "models are not schemas")
	}
}

func TestSchema_PydanticAnnotations(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"api/schemas.py": `from typing import List, Optional
from pydantic import BaseModel, Field


class Tag(BaseModel):
    label: str


class ItemIn(BaseModel):
    name: str
    tags: List[Tag] = []
    note: Optional[str] = None
    count: int = Field(..., description="How many")
    _private: int = 0
`,
	})

	s := findSchema(t, result, "api.schemas.ItemIn")
	assert.Equal(t, []string{"name", "tags", "note", "count"}, fieldNames(s.Fields))

	name := s.Fields[0]
	assert.True(t, name.Required)
	assert.Equal(t, "str", name.Type)

	tags := s.Fields[1]
	assert.True(t, tags.List)
	assert.True(t, tags.Nested)
	assert.Equal(t, "api.schemas.Tag", tags.Ref)
	assert.False(t, tags.Required)

	note := s.Fields[2]
	assert.True(t, note.Nullable)
	assert.False(t, note.Required)

	count := s.Fields[3]
	assert.True(t, count.Required)
	assert.Equal(t, "How many", count.HelpText)
}

func TestSchema_StructuralClassification(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/forms.py": `class Plain:
    value = 3


class FieldsOnly:
    name = CharField()


class External(ThirdPartySerializer):
    name = CharField()
`,
	})

	names := make(map[string]bool)
	for _, s := range result.Schemas {
		names[s.Name] = true
	}
	assert.False(t, names["app.forms.Plain"])
	assert.True(t, names["app.forms.FieldsOnly"])
	assert.True(t, names["app.forms.External"])

	unresolved := warningsOf(collector, diag.KindUnresolved)
	require.Len(t, unresolved, 1)
	assert.Contains(t, unresolved[0].Message, "ThirdPartySerializer")
	assert.Equal(t, "app.forms.External", unresolved[0].Symbol)
}
