package language

// Every scaffold prints the result through a formatter that emits lists as [a,b] with quoted
// strings inside lists, booleans as true/false and null as null.
//
// Scaffold bodies must not contain a literal "{{" outside of template actions.

const javascriptScaffold = `// JavaScript
{{.UserCode}}

function judgeFormat(value, nested) {
  if (value === null || value === undefined) return "null";
  if (Array.isArray(value)) return "[" + value.map((v) => judgeFormat(v, true)).join(",") + "]";
  if (typeof value === "string") return nested ? JSON.stringify(value) : value;
  if (typeof value === "object") return JSON.stringify(value);
  return String(value);
}

console.log(judgeFormat({{.Call}}, false));
`

const pythonScaffold = `# Python
import bisect
import collections
import functools
import heapq
import itertools
import json
import math
import re
from typing import Dict, List, Optional, Set, Tuple

{{.UserCode}}


def _judge_format(value, nested=False):
    if value is None:
        return "null"
    if isinstance(value, bool):
        return "true" if value else "false"
    if isinstance(value, (list, tuple)):
        return "[" + ",".join(_judge_format(v, True) for v in value) + "]"
    if isinstance(value, str):
        return json.dumps(value) if nested else value
    if isinstance(value, dict):
        return json.dumps(value, separators=(",", ":"))
    return str(value)


print(_judge_format({{.Call}}))
`

const rubyScaffold = `# Ruby
require 'set'
require 'json'
require 'prime'
require 'date'

{{.UserCode}}

def judge_format(value, nested = false)
  case value
  when nil then "null"
  when true then "true"
  when false then "false"
  when Array then "[" + value.map { |v| judge_format(v, true) }.join(",") + "]"
  when String then nested ? value.to_json : value
  when Hash then value.to_json
  else value.to_s
  end
end

puts judge_format({{.Call}})
`

const phpScaffold = `<?php
{{.UserCode}}

function judge_format($value, $nested = false) {
    if (is_null($value)) return "null";
    if (is_bool($value)) return $value ? "true" : "false";
    if (is_array($value)) {
        if (count($value) > 0 && array_keys($value) !== range(0, count($value) - 1)) {
            return json_encode($value);
        }
        return "[" . implode(",", array_map(function ($v) { return judge_format($v, true); }, $value)) . "]";
    }
    if (is_string($value)) return $nested ? json_encode($value) : $value;
    return (string)$value;
}

echo judge_format({{.Call}}) . "\n";
?>
`

const cScaffold = `#include <stdio.h>
#include <stdlib.h>
#include <stdbool.h>
#include <string.h>
#include <math.h>
#include <limits.h>
#include <float.h>
#include <ctype.h>

{{.UserCode}}

static void judge_print_int(long long v) { printf("%lld", v); }
static void judge_print_double(double v) { printf("%g", v); }
static void judge_print_bool(bool v) { printf("%s", v ? "true" : "false"); }
static void judge_print_string(const char *v) { printf("%s", v ? v : "null"); }
static void judge_print_pointer(const void *v) { printf("%s", v ? "Pointer results are not supported" : "null"); }

#define judge_print(x) _Generic((x), \
    bool: judge_print_bool, \
    char *: judge_print_string, \
    const char *: judge_print_string, \
    float: judge_print_double, \
    double: judge_print_double, \
    void *: judge_print_pointer, \
    bool *: judge_print_pointer, \
    int *: judge_print_pointer, \
    const int *: judge_print_pointer, \
    long *: judge_print_pointer, \
    long long *: judge_print_pointer, \
    float *: judge_print_pointer, \
    double *: judge_print_pointer, \
    char **: judge_print_pointer, \
    const char **: judge_print_pointer, \
    int **: judge_print_pointer, \
    default: judge_print_int)(x)

int main(void) {
    __auto_type result = {{.Call}};
    judge_print(result);
    printf("\n");
    return 0;
}
`

const cppScaffold = `#include <algorithm>
#include <climits>
#include <cmath>
#include <deque>
#include <functional>
#include <iostream>
#include <map>
#include <numeric>
#include <queue>
#include <set>
#include <sstream>
#include <stack>
#include <string>
#include <type_traits>
#include <unordered_map>
#include <unordered_set>
#include <utility>
#include <vector>
using namespace std;

{{.UserCode}}

string judge_format(const string& v, bool nested = false) { return nested ? "\"" + v + "\"" : v; }
string judge_format(const char* v, bool nested = false) { return judge_format(string(v), nested); }
string judge_format(char v, bool nested = false) { return judge_format(string(1, v), nested); }
string judge_format(bool v, bool nested = false) { return v ? "true" : "false"; }

template <typename T>
typename enable_if<is_arithmetic<T>::value, string>::type judge_format(T v, bool nested = false) {
    ostringstream out;
    out << v;
    return out.str();
}

template <typename T>
string judge_format(const vector<T>& v, bool nested = false) {
    string out = "[";
    for (size_t i = 0; i < v.size(); i++) {
        if (i > 0) out += ",";
        out += judge_format(static_cast<T>(v[i]), true);
    }
    return out + "]";
}

int main() {
    auto result = {{.Call}};
    cout << judge_format(result) << endl;
    return 0;
}
`

const javaScaffold = `import java.util.*;
import java.io.*;
import java.math.*;
import java.util.stream.*;
import java.util.function.*;

public class Main {
{{.UserCode}}

    private static String judgeFormat(Object value, boolean nested) {
        if (value == null) return "null";
        if (value instanceof String || value instanceof Character) {
            return nested ? "\"" + value + "\"" : value.toString();
        }
        if (value instanceof Collection) {
            StringJoiner out = new StringJoiner(",", "[", "]");
            for (Object v : (Collection<?>) value) out.add(judgeFormat(v, true));
            return out.toString();
        }
        if (value.getClass().isArray()) {
            StringJoiner out = new StringJoiner(",", "[", "]");
            int n = java.lang.reflect.Array.getLength(value);
            for (int i = 0; i < n; i++) out.add(judgeFormat(java.lang.reflect.Array.get(value, i), true));
            return out.toString();
        }
        return value.toString();
    }

    public static void main(String[] args) {
        Object result = {{.Call}};
        System.out.println(judgeFormat(result, false));
    }
}
`

const rustScaffold = `use std::cmp::{max, min, Ordering};
use std::collections::*;

{{.UserCode}}

trait JudgeFormat {
    fn judge_format(&self, nested: bool) -> String;
}

macro_rules! judge_format_display {
    ($($t:ty),*) => {
        $(impl JudgeFormat for $t {
            fn judge_format(&self, _nested: bool) -> String { self.to_string() }
        })*
    };
}

judge_format_display!(i8, i16, i32, i64, i128, isize, u8, u16, u32, u64, u128, usize, f32, f64, bool);

macro_rules! judge_format_text {
    ($($t:ty),*) => {
        $(impl JudgeFormat for $t {
            fn judge_format(&self, nested: bool) -> String {
                if nested { format!("\"{}\"", self) } else { self.to_string() }
            }
        })*
    };
}

judge_format_text!(char, String, &str);

impl<T: JudgeFormat> JudgeFormat for Vec<T> {
    fn judge_format(&self, _nested: bool) -> String {
        let items: Vec<String> = self.iter().map(|v| v.judge_format(true)).collect();
        format!("[{}]", items.join(","))
    }
}

impl<T: JudgeFormat> JudgeFormat for Option<T> {
    fn judge_format(&self, nested: bool) -> String {
        match self {
            Some(v) => v.judge_format(nested),
            None => "null".to_string(),
        }
    }
}

fn main() {
    let result = {{.Call}};
    println!("{}", result.judge_format(false));
}
`

const defaultScaffold = `{{.UserCode}}
console.log({{.Call}});
`
